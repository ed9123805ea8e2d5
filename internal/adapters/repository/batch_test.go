package repository

import (
	"testing"

	"github.com/fasttrack/core/internal/ports"
)

func makeOps(n int) []ports.BatchOp {
	ops := make([]ports.BatchOp, n)
	for i := range ops {
		ops[i] = ports.BatchOp{Collection: ports.CollectionTasks, Kind: ports.OpDelete}
	}
	return ops
}

func TestChunk(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		ops   int
		size  int
		want  []int
	}{
		{"empty", 0, ports.MaxBatchOps, nil},
		{"under limit", 10, ports.MaxBatchOps, []int{10}},
		{"exactly limit", ports.MaxBatchOps, ports.MaxBatchOps, []int{ports.MaxBatchOps}},
		{"one over", ports.MaxBatchOps + 1, ports.MaxBatchOps, []int{ports.MaxBatchOps, 1}},
		{"multiple", 7, 3, []int{3, 3, 1}},
		{"zero size", 5, 0, nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			chunks := Chunk(makeOps(tc.ops), tc.size)
			if len(chunks) != len(tc.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tc.want))
			}
			for i, want := range tc.want {
				if len(chunks[i]) != want {
					t.Errorf("chunk %d has %d ops, want %d", i, len(chunks[i]), want)
				}
			}
		})
	}
}

func TestChunkPreservesOrder(t *testing.T) {
	t.Parallel()

	ops := make([]ports.BatchOp, 5)
	for i := range ops {
		ops[i] = ports.BatchOp{ID: string(rune('a' + i))}
	}

	var flat []ports.BatchOp
	for _, chunk := range Chunk(ops, 2) {
		flat = append(flat, chunk...)
	}
	for i := range ops {
		if flat[i].ID != ops[i].ID {
			t.Fatalf("op %d out of order: got %s, want %s", i, flat[i].ID, ops[i].ID)
		}
	}
}

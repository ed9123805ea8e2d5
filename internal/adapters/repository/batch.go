package repository

import "github.com/fasttrack/core/internal/ports"

// Chunk partitions ops into slices of at most size elements, preserving
// order. Ops are whole-entity writes, so a chunk boundary can never split
// a single entity's update.
func Chunk(ops []ports.BatchOp, size int) [][]ports.BatchOp {
	if size <= 0 || len(ops) == 0 {
		return nil
	}
	chunks := make([][]ports.BatchOp, 0, (len(ops)+size-1)/size)
	for start := 0; start < len(ops); start += size {
		end := start + size
		if end > len(ops) {
			end = len(ops)
		}
		chunks = append(chunks, ops[start:end])
	}
	return chunks
}

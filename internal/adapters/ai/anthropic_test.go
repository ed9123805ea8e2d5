package ai

import "testing"

func TestParseDrafts(t *testing.T) {
	t.Parallel()

	drafts, err := parseDrafts(`[{"title":"One","description":"first"},{"title":"Two","description":""}]`)
	if err != nil {
		t.Fatalf("parseDrafts: %v", err)
	}
	if len(drafts) != 2 || drafts[0].Title != "One" || drafts[1].Title != "Two" {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestParseDraftsSalvagesWrappedJSON(t *testing.T) {
	t.Parallel()

	text := "Here is your plan:\n```json\n[{\"title\":\"Only\",\"description\":\"d\"}]\n```\nGood luck!"
	drafts, err := parseDrafts(text)
	if err != nil {
		t.Fatalf("parseDrafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Title != "Only" {
		t.Fatalf("drafts = %+v", drafts)
	}
}

func TestParseDraftsRejectsNonArray(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"no json here", `{"title":"obj not array"}`, ""} {
		if _, err := parseDrafts(text); err == nil {
			t.Errorf("parseDrafts(%q) should fail", text)
		}
	}
}

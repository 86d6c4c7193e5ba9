package ids

import "testing"

func TestGenerateIncreasingUnique(t *testing.T) {
	prev := int64(0)
	for i := 0; i < 10_000; i++ {
		id := Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestSetNodeIDBounds(t *testing.T) {
	SetNodeID(4096) // out of range falls back to 1
	a := Generate()
	if got := (a >> seqBits) & maxNode; got != 1 {
		t.Errorf("node id = %d, want fallback 1", got)
	}

	SetNodeID(100)
	b := Generate()
	if got := (b >> seqBits) & maxNode; got != 100 {
		t.Errorf("node id = %d, want 100", got)
	}
}

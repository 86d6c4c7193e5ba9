package chat

import (
	"testing"
	"time"
)

func TestFriendCacheRefreshes(t *testing.T) {
	clock, advance := testClock(time.Unix(1_700_000_000, 0))

	loads := 0
	set := map[string]struct{}{}
	fc := newFriendCache(30*time.Second, clock, func() map[string]struct{} {
		loads++
		return set
	})

	if fc.Has("bob") {
		t.Fatal("bob is not a friend yet")
	}

	// friendship accepted mid-session
	set = map[string]struct{}{"bob": {}}
	if fc.Has("bob") {
		t.Error("set must stay cached within the refresh window")
	}

	advance(31 * time.Second)
	if !fc.Has("bob") {
		t.Error("new friend missing after the refresh window elapsed")
	}
	if loads != 2 {
		t.Errorf("loads = %d, want 2", loads)
	}
}

func TestWatchSetCancelAllRunsEachOnce(t *testing.T) {
	w := newWatchSet()

	counts := map[string]int{}
	for _, room := range []string{"a-b", "a-c"} {
		room := room
		w.Set(room, func() { counts[room]++ })
	}
	w.Cancel("a-b")
	w.CancelAll()
	w.CancelAll()

	for room, n := range counts {
		if n != 1 {
			t.Errorf("cancel for %s ran %d times, want 1", room, n)
		}
	}
	if len(counts) != 2 {
		t.Errorf("cancels ran for %d rooms, want 2", len(counts))
	}
}

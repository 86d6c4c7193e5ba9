package service

import "testing"

func TestRefListUpdateScopesFilterToList(t *testing.T) {
	name := "Alice"
	filter, set := refListUpdate("friends", "u1", &name, nil)

	if got := filter["friends.uid"]; got != "u1" {
		t.Errorf("filter[friends.uid] = %v, want u1", got)
	}
	if len(filter) != 1 {
		t.Errorf("filter has %d keys, want 1 (must not match docs missing the array)", len(filter))
	}
	if got := set["friends.$[ref].displayName"]; got != "Alice" {
		t.Errorf("set displayName = %v, want Alice", got)
	}
	if _, ok := set["friends.$[ref].photoURL"]; ok {
		t.Error("photoURL set without input")
	}
}

func TestRefListUpdateEmptyWhenNothingChanges(t *testing.T) {
	filter, set := refListUpdate("sentRequests", "u1", nil, nil)
	if len(set) != 0 {
		t.Errorf("set = %v, want empty", set)
	}
	if got := filter["sentRequests.uid"]; got != "u1" {
		t.Errorf("filter[sentRequests.uid] = %v, want u1", got)
	}
}

package model

import "testing"

func TestRoomIDSymmetric(t *testing.T) {
	cases := []struct {
		a, b string
		want string
	}{
		{"alice", "bob", "alice-bob"},
		{"bob", "alice", "alice-bob"},
		{"u9", "u10", "u10-u9"}, // lexicographic, not numeric
		{"x", "x", "x-x"},
	}
	for _, c := range cases {
		if got := RoomID(c.a, c.b); got != c.want {
			t.Errorf("RoomID(%q, %q) = %q, want %q", c.a, c.b, got, c.want)
		}
		if RoomID(c.a, c.b) != RoomID(c.b, c.a) {
			t.Errorf("RoomID(%q, %q) not symmetric", c.a, c.b)
		}
	}
}

func TestRoomHasMember(t *testing.T) {
	room := RoomID("alice", "bob")
	for _, uid := range []string{"alice", "bob"} {
		if !RoomHasMember(room, uid) {
			t.Errorf("RoomHasMember(%q, %q) = false, want true", room, uid)
		}
	}
	for _, uid := range []string{"carol", "ali", "ob", ""} {
		if RoomHasMember(room, uid) {
			t.Errorf("RoomHasMember(%q, %q) = true, want false", room, uid)
		}
	}
	if RoomHasMember("", "alice") {
		t.Error("empty room has no members")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("alice-bob"); got != "room.alice-bob" {
		t.Errorf("Subject = %q", got)
	}
}

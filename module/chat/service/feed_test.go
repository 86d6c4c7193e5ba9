package service

import (
	"testing"

	chatmodel "FCProject/module/chat/model"
	usermodel "FCProject/module/user/model"
)

func fref(uid string) usermodel.FriendRef {
	return usermodel.FriendRef{UID: uid, DisplayName: "name-" + uid}
}

func fmsg(id, room, sentBy string, at int64) chatmodel.Message {
	return chatmodel.Message{ID: id, RoomID: room, SentBy: sentBy, Text: "m-" + id, CreatedAt: at}
}

func TestFeedUpsertKeepsNewest(t *testing.T) {
	f := NewFeed("me")
	bob := fref("bob")

	f.Upsert(bob, fmsg("1", "bob-me", "bob", 100))
	f.Upsert(bob, fmsg("2", "bob-me", "me", 200))
	f.Upsert(bob, fmsg("1", "bob-me", "bob", 100)) // stale replay

	rows := f.Entries()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Latest.ID != "2" {
		t.Errorf("latest = %s, want 2", rows[0].Latest.ID)
	}
}

func TestFeedUpsertIdempotent(t *testing.T) {
	f := NewFeed("me")
	bob := fref("bob")
	m := fmsg("7", "bob-me", "bob", 500)

	f.Upsert(bob, m)
	before := f.Entries()
	f.Upsert(bob, m)
	after := f.Entries()

	if len(before) != 1 || len(after) != 1 || before[0].Latest.ID != after[0].Latest.ID {
		t.Errorf("duplicate upsert changed state: before=%v after=%v", before, after)
	}
}

func TestFeedUpsertOrderIndependent(t *testing.T) {
	bob := fref("bob")
	msgs := []chatmodel.Message{
		fmsg("1", "bob-me", "bob", 100),
		fmsg("3", "bob-me", "me", 300),
		fmsg("2", "bob-me", "bob", 200),
	}

	forward := NewFeed("me")
	for _, m := range msgs {
		forward.Upsert(bob, m)
	}
	backward := NewFeed("me")
	for i := len(msgs) - 1; i >= 0; i-- {
		backward.Upsert(bob, msgs[i])
	}

	a, b := forward.Entries(), backward.Entries()
	if a[0].Latest.ID != "3" || b[0].Latest.ID != "3" {
		t.Errorf("fold not order independent: forward=%s backward=%s", a[0].Latest.ID, b[0].Latest.ID)
	}
}

func TestFeedTieBreakByMessageID(t *testing.T) {
	f := NewFeed("me")
	bob := fref("bob")

	f.Upsert(bob, fmsg("b", "bob-me", "bob", 100))
	f.Upsert(bob, fmsg("a", "bob-me", "me", 100)) // same ts, lower id loses

	if got := f.Entries()[0].Latest.ID; got != "b" {
		t.Errorf("tie break = %s, want b", got)
	}
}

func TestFeedEntriesNewestFirst(t *testing.T) {
	f := NewFeed("me")
	f.Upsert(fref("bob"), fmsg("1", "bob-me", "bob", 100))
	f.Upsert(fref("carol"), fmsg("2", "carol-me", "carol", 300))
	f.Upsert(fref("dave"), fmsg("3", "dave-me", "dave", 200))

	rows := f.Entries()
	want := []string{"carol", "dave", "bob"}
	for i, uid := range want {
		if rows[i].Friend.UID != uid {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i].Friend.UID, uid)
		}
	}
}

func TestFeedDrop(t *testing.T) {
	f := NewFeed("me")
	f.Upsert(fref("bob"), fmsg("1", "bob-me", "bob", 100))
	f.Drop("bob")
	if len(f.Entries()) != 0 {
		t.Error("drop left a row behind")
	}
	f.Drop("bob") // no-op
}

package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	usermodel "FCProject/module/user/model"
	"FCProject/service/notify"
	"FCProject/tools/errs"
)

func ref(uid string) usermodel.FriendRef {
	return usermodel.FriendRef{UID: uid, DisplayName: "name-" + uid}
}

func pendingPair(t *testing.T) (a, b *Edges) {
	t.Helper()
	a, b = &Edges{}, &Edges{}
	if err := applySend(a, b, ref("alice"), ref("bob")); err != nil {
		t.Fatalf("applySend: %v", err)
	}
	return a, b
}

func TestSendCreatesPendingEdges(t *testing.T) {
	a, b := pendingPair(t)

	if !containsRef(a.Sent, "bob") {
		t.Error("sender missing sent edge")
	}
	if !containsRef(b.Received, "alice") {
		t.Error("receiver missing received edge")
	}
	if len(a.Friends) != 0 || len(b.Friends) != 0 {
		t.Error("send must not create friendship")
	}
}

func TestSendRejectsDuplicatesAndSelf(t *testing.T) {
	a, b := pendingPair(t)

	if err := applySend(a, b, ref("alice"), ref("bob")); !errs.ErrRequestExists.Is(err) {
		t.Errorf("duplicate send: got %v, want ErrRequestExists", err)
	}
	// crossed request from the other side is also a duplicate
	if err := applySend(b, a, ref("bob"), ref("alice")); !errs.ErrRequestExists.Is(err) {
		t.Errorf("crossed send: got %v, want ErrRequestExists", err)
	}
	if err := applySend(a, a, ref("alice"), ref("alice")); !errs.ErrArgs.Is(err) {
		t.Errorf("self send: got %v, want ErrArgs", err)
	}
}

func TestAcceptCreatesMutualFriendship(t *testing.T) {
	a, b := pendingPair(t)

	if err := applyAccept(a, b, ref("alice"), ref("bob")); err != nil {
		t.Fatalf("applyAccept: %v", err)
	}
	if !containsRef(a.Friends, "bob") || !containsRef(b.Friends, "alice") {
		t.Error("friendship must be mutual")
	}
	for _, list := range [][]usermodel.FriendRef{a.Sent, a.Received, b.Sent, b.Received} {
		if len(list) != 0 {
			t.Error("request edges must be cleared on accept")
		}
	}
}

func TestAcceptRequiresPendingRequest(t *testing.T) {
	a, b := &Edges{}, &Edges{}
	if err := applyAccept(a, b, ref("alice"), ref("bob")); !errs.ErrRequestNotFound.Is(err) {
		t.Errorf("accept without request: got %v, want ErrRequestNotFound", err)
	}

	// double accept
	a, b = pendingPair(t)
	if err := applyAccept(a, b, ref("alice"), ref("bob")); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := applyAccept(a, b, ref("alice"), ref("bob")); !errs.ErrRequestNotFound.Is(err) {
		t.Errorf("second accept: got %v, want ErrRequestNotFound", err)
	}

	// accept after reject
	a, b = pendingPair(t)
	if err := applyReject(a, b, "alice", "bob"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := applyAccept(a, b, ref("alice"), ref("bob")); !errs.ErrRequestNotFound.Is(err) {
		t.Errorf("accept after reject: got %v, want ErrRequestNotFound", err)
	}
}

func TestRejectClearsEdgesWithoutFriendship(t *testing.T) {
	a, b := pendingPair(t)

	if err := applyReject(a, b, "alice", "bob"); err != nil {
		t.Fatalf("applyReject: %v", err)
	}
	if len(a.Friends) != 0 || len(b.Friends) != 0 {
		t.Error("reject must not create friendship")
	}
	if containsRef(a.Sent, "bob") || containsRef(b.Received, "alice") {
		t.Error("reject must clear request edges")
	}
	// request can be re-sent afterwards
	if err := applySend(a, b, ref("alice"), ref("bob")); err != nil {
		t.Errorf("resend after reject: %v", err)
	}
}

func TestUnfriendIsIdempotent(t *testing.T) {
	a, b := pendingPair(t)
	if err := applyAccept(a, b, ref("alice"), ref("bob")); err != nil {
		t.Fatalf("accept: %v", err)
	}

	applyUnfriend(a, b, "alice", "bob")
	if containsRef(a.Friends, "bob") || containsRef(b.Friends, "alice") {
		t.Error("unfriend must remove both edges")
	}

	applyUnfriend(a, b, "alice", "bob") // second call is a no-op
	if len(a.Friends) != 0 || len(b.Friends) != 0 {
		t.Error("second unfriend changed state")
	}

	// and the pair can start over
	if err := applySend(a, b, ref("alice"), ref("bob")); err != nil {
		t.Errorf("send after unfriend: %v", err)
	}
}

func TestNotifyFriendEventHitsRelay(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := notify.NewNotifier(notify.Config{Endpoint: srv.URL})
	target := &usermodel.User{UID: "bob", DeviceToken: "tok-bob"}
	sender := &usermodel.User{UID: "alice", DisplayName: "Alice"}

	notifyFriendEvent(n, target, sender, "Friend Request!", "Alice sent you a friend request!")

	select {
	case body := <-got:
		nd, _ := body["notificationData"].(map[string]any)
		if nd == nil || nd["token"] != "tok-bob" {
			t.Errorf("unexpected relay body: %v", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay was never called")
	}
}

func TestNotifyFriendEventSkipsWithoutToken(t *testing.T) {
	called := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer srv.Close()

	n := notify.NewNotifier(notify.Config{Endpoint: srv.URL})
	notifyFriendEvent(n, &usermodel.User{UID: "bob"}, &usermodel.User{UID: "alice"}, "t", "b")

	select {
	case <-called:
		t.Error("relay called for user without device token")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSendBlockedWhileFriends(t *testing.T) {
	a, b := pendingPair(t)
	if err := applyAccept(a, b, ref("alice"), ref("bob")); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := applySend(a, b, ref("alice"), ref("bob")); !errs.ErrAlreadyFriends.Is(err) {
		t.Errorf("send while friends: got %v, want ErrAlreadyFriends", err)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendPostsEnvelope(t *testing.T) {
	var got envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(Config{Endpoint: srv.URL})
	err := n.Send(context.Background(), Notification{
		Notification: Body{Title: "Friend Request!", Content: "Alice sent you a Friend Request!"},
		Data: map[string]string{
			"senderUID":         "u1",
			"senderDisplayName": "Alice",
		},
		Token: "device-token-1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.NotificationData.Token != "device-token-1" {
		t.Errorf("token = %q", got.NotificationData.Token)
	}
	if got.NotificationData.Notification.Title != "Friend Request!" {
		t.Errorf("title = %q", got.NotificationData.Notification.Title)
	}
	if got.NotificationData.Data["senderUID"] != "u1" {
		t.Errorf("data.senderUID = %q", got.NotificationData.Data["senderUID"])
	}
}

func TestSendSkipsWithoutToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewNotifier(Config{Endpoint: srv.URL})
	if err := n.Send(context.Background(), Notification{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if called {
		t.Error("relay should not be called without a device token")
	}
}

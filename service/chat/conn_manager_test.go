package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testClock(start time.Time) (func() time.Time, func(d time.Duration)) {
	cur := start
	return func() time.Time { return cur }, func(d time.Duration) { cur = cur.Add(d) }
}

func TestCloseRunsOwnedCancels(t *testing.T) {
	m := NewConnManager(ManagerConf{}, "gw-test")

	var released int32
	for _, sid := range []string{"s1", "s2", "s3"} {
		// nil conn never happens in production; Add requires one, so
		// register sessions through the map directly
		s := &WsSession{SessionID: sid, UID: "u-" + sid}
		s.OwnCancel(func() { atomic.AddInt32(&released, 1) })
		m.mu.Lock()
		m.bySess[sid] = s
		m.byUser[s.UID] = map[string]*WsSession{sid: s}
		m.mu.Unlock()
	}

	m.Close()
	if got := atomic.LoadInt32(&released); got != 3 {
		t.Errorf("released = %d, want 3", got)
	}
	if _, ok := m.Get("s1"); ok {
		t.Error("session survived Close")
	}
}

func TestRemoveRunsCancelsOnce(t *testing.T) {
	m := NewConnManager(ManagerConf{}, "gw-test")
	defer m.Close()

	var n int32
	s := &WsSession{SessionID: "s1", UID: "u1"}
	s.OwnCancel(func() { atomic.AddInt32(&n, 1) })
	m.mu.Lock()
	m.bySess["s1"] = s
	m.byUser["u1"] = map[string]*WsSession{"s1": s}
	m.mu.Unlock()

	m.Remove("s1")
	m.Remove("s1") // second remove is a no-op
	if got := atomic.LoadInt32(&n); got != 1 {
		t.Errorf("cancel ran %d times, want 1", got)
	}
	if m.UserOnline("u1") {
		t.Error("user still indexed after remove")
	}
}

func TestOwnCancelAfterTeardownRunsImmediately(t *testing.T) {
	s := &WsSession{SessionID: "s1", UID: "u1"}
	s.teardown()

	ran := false
	s.OwnCancel(func() { ran = true })
	if !ran {
		t.Error("late OwnCancel must run immediately")
	}
}

func TestSweepExpiresStaleSessions(t *testing.T) {
	clock, advance := testClock(time.Unix(1_700_000_000, 0))
	m := NewConnManager(ManagerConf{SessionTTL: time.Minute, SweepEvery: time.Hour, Clock: clock}, "gw-test")
	defer m.Close()

	var released int32
	now := clock()
	s := &WsSession{SessionID: "s1", UID: "u1", CreatedAt: now, Heartbeat: now, ExpireAt: now.Add(time.Minute)}
	s.OwnCancel(func() { atomic.AddInt32(&released, 1) })
	m.mu.Lock()
	m.bySess["s1"] = s
	m.byUser["u1"] = map[string]*WsSession{"s1": s}
	m.mu.Unlock()

	advance(30 * time.Second)
	m.sweepOnce(clock())
	if _, ok := m.Get("s1"); !ok {
		t.Fatal("session swept before expiry")
	}

	advance(2 * time.Minute)
	m.sweepOnce(clock())
	if _, ok := m.Get("s1"); ok {
		t.Error("expired session not swept")
	}
	if got := atomic.LoadInt32(&released); got != 1 {
		t.Errorf("released = %d, want 1", got)
	}
}

func TestHeartbeatExtendsExpiry(t *testing.T) {
	clock, advance := testClock(time.Unix(1_700_000_000, 0))
	m := NewConnManager(ManagerConf{SessionTTL: time.Minute, SweepEvery: time.Hour, Clock: clock}, "gw-test")
	defer m.Close()

	now := clock()
	s := &WsSession{SessionID: "s1", UID: "u1", CreatedAt: now, Heartbeat: now, ExpireAt: now.Add(time.Minute)}
	m.mu.Lock()
	m.bySess["s1"] = s
	m.byUser["u1"] = map[string]*WsSession{"s1": s}
	m.mu.Unlock()

	advance(50 * time.Second)
	if err := m.Heartbeat("s1"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	advance(50 * time.Second) // 100s total, but renewed at 50s
	m.sweepOnce(clock())
	if _, ok := m.Get("s1"); !ok {
		t.Error("renewed session was swept")
	}

	if err := m.Heartbeat("missing"); err == nil {
		t.Error("Heartbeat on unknown session must fail")
	}
}

// Acks, room events and presence pushes hit the same conn from
// independent goroutines, so SendOne must serialize its writes.
func TestSendOneSerializesConcurrentWrites(t *testing.T) {
	m := NewConnManager(ManagerConf{}, "gw-test")
	defer m.Close()

	upgrader := websocket.Upgrader{}
	ready := make(chan struct{})
	hold := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, err := m.Add("u1", "s1", conn); err != nil {
			return
		}
		close(ready)
		<-hold
	}))
	defer srv.Close()
	// release the handler before the server shuts down
	defer close(hold)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = client.Close() }()

	var got int32
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
			atomic.AddInt32(&got, 1)
		}
	}()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server session not registered")
	}

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if err := m.SendOne("s1", []byte(`{"type":"message"}`)); err != nil {
					t.Errorf("SendOne: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&got) < writers*perWriter && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if g := atomic.LoadInt32(&got); g != writers*perWriter {
		t.Errorf("received %d frames, want %d", g, writers*perWriter)
	}
}

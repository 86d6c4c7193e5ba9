package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"FCProject/logger"
	chatmodel "FCProject/module/chat/model"
	"FCProject/service/natsx"
)

func roomIDFor(a, b string) string { return chatmodel.RoomID(a, b) }

// watchRoom forwards the room's live events to one session. The
// session is the subscriber, so two devices of the same user each get
// their own stream.
func (s *Server) watchRoom(sess *WsSession, roomID string) (func(), error) {
	return s.nats.SubscribeSubject(chatmodel.Subject(roomID), "", func(ctx context.Context, m natsx.NatsxMessage) error {
		var ev map[string]any
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			logger.Warnf("[gateway] bad room event subject=%s: %v", m.Subject, err)
			return nil
		}
		return s.cm.SendOne(sess.SessionID, BuildPush(FrameMessage, ev))
	})
}

// friendCache resolves the friend set behind a short refresh window,
// so friendships accepted mid-session start feeding presence without
// a reconnect.
type friendCache struct {
	load    func() map[string]struct{}
	refresh time.Duration
	now     func() time.Time

	mu       sync.Mutex
	set      map[string]struct{}
	loadedAt time.Time
}

func newFriendCache(refresh time.Duration, now func() time.Time, load func() map[string]struct{}) *friendCache {
	if now == nil {
		now = time.Now
	}
	return &friendCache{load: load, refresh: refresh, now: now}
}

func (f *friendCache) Has(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set == nil || f.now().Sub(f.loadedAt) >= f.refresh {
		f.set = f.load()
		f.loadedAt = f.now()
	}
	_, ok := f.set[uid]
	return ok
}

// watchSet tracks the room subscriptions one session opened. Cancel
// and CancelAll may race with each other; each cancel runs at most
// once.
type watchSet struct {
	mu      sync.Mutex
	cancels map[string]func()
}

func newWatchSet() *watchSet {
	return &watchSet{cancels: make(map[string]func())}
}

// Set replaces any previous watch on the same room.
func (w *watchSet) Set(roomID string, cancel func()) {
	w.mu.Lock()
	old := w.cancels[roomID]
	w.cancels[roomID] = cancel
	w.mu.Unlock()
	if old != nil {
		old()
	}
}

func (w *watchSet) Cancel(roomID string) {
	w.mu.Lock()
	cancel := w.cancels[roomID]
	delete(w.cancels, roomID)
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (w *watchSet) CancelAll() {
	w.mu.Lock()
	cancels := w.cancels
	w.cancels = make(map[string]func())
	w.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

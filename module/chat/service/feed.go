package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"FCProject/logger"
	chatmodel "FCProject/module/chat/model"
	usermodel "FCProject/module/user/model"
	"FCProject/service/natsx"

	"go.mongodb.org/mongo-driver/mongo"
)

// FeedEntry is one row of the recent-chats screen: the friend plus
// the newest message of the shared room.
type FeedEntry struct {
	Friend usermodel.FriendRef `json:"friend"`
	Latest chatmodel.Message   `json:"latest"`
}

// Feed aggregates the newest message per friend for one owner. Upsert
// keeps the max-timestamp message per friend, so replayed or
// out-of-order events converge to the same state regardless of
// arrival order.
type Feed struct {
	mu      sync.RWMutex
	owner   string
	entries map[string]FeedEntry // friend uid -> entry
}

func NewFeed(owner string) *Feed {
	return &Feed{owner: owner, entries: make(map[string]FeedEntry)}
}

func (f *Feed) Owner() string { return f.owner }

// Upsert folds one message into the feed. Older messages and exact
// replays leave the entry untouched; ties on timestamp are broken by
// message id so the fold stays deterministic.
func (f *Feed) Upsert(friend usermodel.FriendRef, msg chatmodel.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.entries[friend.UID]
	if ok {
		if msg.CreatedAt < cur.Latest.CreatedAt {
			return
		}
		if msg.CreatedAt == cur.Latest.CreatedAt && msg.ID <= cur.Latest.ID {
			return
		}
	}
	f.entries[friend.UID] = FeedEntry{Friend: friend, Latest: msg}
}

// Drop removes a friend's row, after unfriending or deletion of the
// only message.
func (f *Feed) Drop(friendUID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, friendUID)
}

// Entries returns rows newest first.
func (f *Feed) Entries() []FeedEntry {
	f.mu.RLock()
	out := make([]FeedEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Latest.CreatedAt != out[j].Latest.CreatedAt {
			return out[i].Latest.CreatedAt > out[j].Latest.CreatedAt
		}
		return out[i].Latest.ID > out[j].Latest.ID
	})
	return out
}

// FeedWatcher keeps one Feed live: backfill from storage, then one
// room subscription per friend. The watcher owns its cancels and
// releases them all on Close.
type FeedWatcher struct {
	feed *Feed
	// called after every live upsert; nil for poll-only callers
	onUpdate func(FeedEntry)

	mu      sync.Mutex
	cancels map[string]func() // friend uid -> subscription cancel
	closed  bool
}

// StartFeedWatcher backfills the newest message per friend and
// subscribes to each shared room. onUpdate fires on every live
// change, not on backfill.
func StartFeedWatcher(ctx context.Context, db *mongo.Database, nats *natsx.NatsManager, owner string, friends []usermodel.FriendRef, onUpdate func(FeedEntry)) (*FeedWatcher, error) {
	w := &FeedWatcher{
		feed:     NewFeed(owner),
		onUpdate: onUpdate,
		cancels:  make(map[string]func()),
	}
	for _, fr := range friends {
		if err := w.Watch(ctx, db, nats, fr); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *FeedWatcher) Feed() *Feed { return w.feed }

// Watch adds one friend: backfill, then live subscription. Called
// again after an accept while the owner is connected.
func (w *FeedWatcher) Watch(ctx context.Context, db *mongo.Database, nats *natsx.NatsManager, friend usermodel.FriendRef) error {
	roomID := chatmodel.RoomID(w.feed.Owner(), friend.UID)

	if db != nil {
		latest, err := Latest(ctx, db, roomID)
		if err != nil {
			return err
		}
		if latest != nil {
			w.feed.Upsert(friend, *latest)
		}
	}

	if nats == nil {
		return nil
	}
	cancel, err := nats.SubscribeSubject(chatmodel.Subject(roomID), "", func(ctx context.Context, m natsx.NatsxMessage) error {
		var ev RoomEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			logger.Warnf("[feed] bad room event subject=%s: %v", m.Subject, err)
			return nil
		}
		if ev.Type == EventMessage && ev.Message != nil {
			w.feed.Upsert(friend, *ev.Message)
			if w.onUpdate != nil {
				w.onUpdate(FeedEntry{Friend: friend, Latest: *ev.Message})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		cancel()
		return nil
	}
	if old, ok := w.cancels[friend.UID]; ok {
		old()
	}
	w.cancels[friend.UID] = cancel
	w.mu.Unlock()
	return nil
}

// Unwatch drops a friend's subscription and row.
func (w *FeedWatcher) Unwatch(friendUID string) {
	w.mu.Lock()
	cancel, ok := w.cancels[friendUID]
	delete(w.cancels, friendUID)
	w.mu.Unlock()

	if ok {
		cancel()
	}
	w.feed.Drop(friendUID)
}

// Close releases every subscription. Safe to call twice.
func (w *FeedWatcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	cancels := w.cancels
	w.cancels = map[string]func(){}
	w.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"FCProject/logger"
	fcredis "FCProject/service/storage/redis"
	"FCProject/tools/safe"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence lives in two Redis namespaces:
//
//	fc:presence:online:<uid>  -> "1" with TTL
//	fc:presence:offline       -> hash, field <uid> = lastSeenAt unix ms
//
// The TTL on the online marker is the disconnect fallback: a client
// that drops without a clean sign-out stops heartbeating, the marker
// expires, and the continuously refreshed offline entry carries the
// last-seen time. A graceful sign-out deletes the marker itself, which
// also cancels the fallback.
const (
	onlineKeyPrefix = "fc:presence:online:"
	offlineHashKey  = "fc:presence:offline"
	eventChannel    = "fc:presence:events"
)

type PresenceConfig struct {
	OnlineTTL time.Duration // marker lifetime between heartbeats
}

func (c *PresenceConfig) norm() {
	if c.OnlineTTL <= 0 {
		c.OnlineTTL = 60 * time.Second
	}
}

// PresenceEvent is published on the event channel for every state
// change; the WS gateway subscribes once and fans out.
type PresenceEvent struct {
	UID        string `json:"uid"`
	Online     bool   `json:"online"`
	LastSeenAt int64  `json:"lastSeenAt,omitempty"` // unix ms, offline only
}

// PresenceStatus is the derived per-counterpart view.
type PresenceStatus struct {
	Online     bool
	LastSeenAt time.Time // zero when never seen
}

type PresenceManager struct {
	cfg PresenceConfig
	now func() time.Time // injectable clock for tests
}

func NewPresenceManager(cfg PresenceConfig) *PresenceManager {
	cfg.norm()
	return &PresenceManager{cfg: cfg, now: time.Now}
}

func onlineKey(uid string) string { return onlineKeyPrefix + uid }

// Track marks uid online and arms the TTL fallback. Callers treat a
// failure as non-fatal: log and move on, no retry.
func (m *PresenceManager) Track(ctx context.Context, uid string) error {
	rdb := fcredis.GetRedis()
	now := m.now().UnixMilli()

	pipe := rdb.TxPipeline()
	pipe.Set(ctx, onlineKey(uid), "1", m.cfg.OnlineTTL)
	pipe.HSet(ctx, offlineHashKey, uid, now)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "presence track")
	}
	m.publish(ctx, PresenceEvent{UID: uid, Online: true})
	return nil
}

// Heartbeat renews the online marker and refreshes the last-seen time
// the fallback would report.
func (m *PresenceManager) Heartbeat(ctx context.Context, uid string) error {
	rdb := fcredis.GetRedis()
	now := m.now().UnixMilli()

	pipe := rdb.TxPipeline()
	pipe.Expire(ctx, onlineKey(uid), m.cfg.OnlineTTL)
	pipe.HSet(ctx, offlineHashKey, uid, now)
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "presence heartbeat")
}

// Untrack is the graceful sign-out: remove the online marker (which
// cancels the TTL fallback), record lastSeenAt, announce offline.
func (m *PresenceManager) Untrack(ctx context.Context, uid string) error {
	rdb := fcredis.GetRedis()
	now := m.now().UnixMilli()

	pipe := rdb.TxPipeline()
	pipe.Del(ctx, onlineKey(uid))
	pipe.HSet(ctx, offlineHashKey, uid, now)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "presence untrack")
	}
	m.publish(ctx, PresenceEvent{UID: uid, Online: false, LastSeenAt: now})
	return nil
}

// Lookup derives the status for a single counterpart uid.
func (m *PresenceManager) Lookup(ctx context.Context, uid string) (PresenceStatus, error) {
	st, err := m.Snapshot(ctx, []string{uid})
	if err != nil {
		return PresenceStatus{}, err
	}
	return st[uid], nil
}

// Snapshot derives statuses for a set of counterpart uids in one round
// trip: online marker present wins, else the offline hash supplies the
// last-seen time.
func (m *PresenceManager) Snapshot(ctx context.Context, uids []string) (map[string]PresenceStatus, error) {
	rdb := fcredis.GetRedis()
	out := make(map[string]PresenceStatus, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	pipe := rdb.Pipeline()
	onlineCmds := make([]*redis.IntCmd, len(uids))
	for i, uid := range uids {
		onlineCmds[i] = pipe.Exists(ctx, onlineKey(uid))
	}
	offlineCmd := pipe.HMGet(ctx, offlineHashKey, uids...)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "presence snapshot")
	}

	lastSeen := offlineCmd.Val()
	for i, uid := range uids {
		st := PresenceStatus{Online: onlineCmds[i].Val() > 0}
		if i < len(lastSeen) && lastSeen[i] != nil {
			if s, ok := lastSeen[i].(string); ok {
				if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
					st.LastSeenAt = time.UnixMilli(ms)
				}
			}
		}
		out[uid] = st
	}
	return out, nil
}

// Subscribe starts consuming presence events; the returned func cancels
// the subscription. Handlers run on a dedicated goroutine.
func (m *PresenceManager) Subscribe(ctx context.Context, h func(PresenceEvent)) (func(), error) {
	rdb := fcredis.GetRedis()
	sub := rdb.Subscribe(ctx, eventChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "presence subscribe")
	}

	safe.Go(func() {
		for msg := range sub.Channel() {
			var ev PresenceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warnf("[presence] bad event payload: %v", err)
				continue
			}
			h(ev)
		}
	})

	return func() { _ = sub.Close() }, nil
}

func (m *PresenceManager) publish(ctx context.Context, ev PresenceEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := fcredis.GetRedis().Publish(ctx, eventChannel, b).Err(); err != nil {
		logger.Warnf("[presence] publish uid=%s: %v", ev.UID, err)
	}
}

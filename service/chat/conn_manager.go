package chat

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type ManagerConf struct {
	SessionTTL time.Duration    // refreshed on every heartbeat
	SweepEvery time.Duration    // sweeper period
	MaxPerUser int              // <=0 means unlimited
	Clock      func() time.Time // injectable for tests; nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 2 * time.Hour
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
}

// WsSession is one websocket attachment of one user. A user may hold
// several sessions at once (phone plus web).
type WsSession struct {
	SessionID string
	UID       string

	Conn   *websocket.Conn
	Remote net.Addr

	// serializes conn writes; the websocket permits one writer and
	// acks, room events, feed and presence pushes all target the
	// same conn from their own goroutines
	wmu sync.Mutex

	CreatedAt time.Time
	Heartbeat time.Time
	ExpireAt  time.Time

	// cancels owned by this session: room watchers, presence feed.
	// Closed exactly once by the manager on removal.
	mu      sync.Mutex
	cancels []func()
	done    bool
}

// OwnCancel registers a teardown hook run when the session is removed.
// If the session is already gone the hook runs immediately.
func (s *WsSession) OwnCancel(cancel func()) {
	if cancel == nil {
		return
	}
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
}

func (s *WsSession) teardown() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	closeQuiet(s.Conn)
}

type ConnManager struct {
	mu     sync.RWMutex
	bySess map[string]*WsSession            // primary index: sessionID -> session
	byUser map[string]map[string]*WsSession // secondary: uid -> (sessionID -> session)

	conf     ManagerConf
	gwID     string
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnManager(conf ManagerConf, gwID string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		bySess: make(map[string]*WsSession),
		byUser: make(map[string]map[string]*WsSession),
		conf:   conf,
		gwID:   gwID,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) GwID() string { return m.gwID }

// Close tears every session down, running owned cancels first.
func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	sessions := make([]*WsSession, 0, len(m.bySess))
	for _, s := range m.bySess {
		sessions = append(sessions, s)
	}
	m.bySess = map[string]*WsSession{}
	m.byUser = map[string]map[string]*WsSession{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.teardown()
	}
}

// Add registers an authenticated session. When MaxPerUser is exceeded
// the user's oldest session is evicted.
func (m *ConnManager) Add(uid, sessionID string, conn *websocket.Conn) (*WsSession, error) {
	if uid == "" || sessionID == "" || conn == nil {
		return nil, errors.New("uid/sessionID/conn empty")
	}
	now := m.conf.Clock()

	m.mu.Lock()
	if _, exists := m.bySess[sessionID]; exists {
		m.mu.Unlock()
		return nil, errors.New("sessionID exists")
	}
	var evicted *WsSession
	if m.conf.MaxPerUser > 0 {
		evicted = m.evictOldestLocked(uid)
	}
	s := &WsSession{
		SessionID: sessionID,
		UID:       uid,
		Conn:      conn,
		Remote:    conn.RemoteAddr(),
		CreatedAt: now,
		Heartbeat: now,
		ExpireAt:  now.Add(m.conf.SessionTTL),
	}
	m.bySess[sessionID] = s
	if m.byUser[uid] == nil {
		m.byUser[uid] = make(map[string]*WsSession)
	}
	m.byUser[uid][sessionID] = s
	m.mu.Unlock()

	if evicted != nil {
		evicted.teardown()
	}
	return s, nil
}

// evictOldestLocked drops the user's oldest session once the cap is
// reached; returns it for teardown outside the lock.
func (m *ConnManager) evictOldestLocked(uid string) *WsSession {
	mm := m.byUser[uid]
	if len(mm) < m.conf.MaxPerUser {
		return nil
	}
	var oldest *WsSession
	for _, s := range mm {
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return nil
	}
	delete(mm, oldest.SessionID)
	delete(m.bySess, oldest.SessionID)
	if len(mm) == 0 {
		delete(m.byUser, uid)
	}
	return oldest
}

func (m *ConnManager) Get(sessionID string) (*WsSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.bySess[sessionID]
	return s, ok
}

// Remove closes and unindexes one session.
func (m *ConnManager) Remove(sessionID string) {
	m.mu.Lock()
	s, ok := m.bySess[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.bySess, sessionID)
	if mm := m.byUser[s.UID]; mm != nil {
		delete(mm, sessionID)
		if len(mm) == 0 {
			delete(m.byUser, s.UID)
		}
	}
	m.mu.Unlock()

	s.teardown()
}

// UserOnline reports whether the user still has at least one session
// on this gateway.
func (m *ConnManager) UserOnline(uid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[uid]) > 0
}

// Heartbeat refreshes the session TTL.
func (m *ConnManager) Heartbeat(sessionID string) error {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.bySess[sessionID]
	if !ok {
		return errors.New("sessionID not found")
	}
	s.Heartbeat = now
	s.ExpireAt = now.Add(m.conf.SessionTTL)
	return nil
}

// AttachPongHandler renews the session on every websocket pong.
func (m *ConnManager) AttachPongHandler(conn *websocket.Conn, sessionID string) {
	if conn == nil || sessionID == "" {
		return
	}
	conn.SetPongHandler(func(string) error {
		_ = m.Heartbeat(sessionID) // session may already be swept
		return nil
	})
}

// SendOne writes to a single session.
func (m *ConnManager) SendOne(sessionID string, data []byte) error {
	m.mu.RLock()
	s, ok := m.bySess[sessionID]
	m.mu.RUnlock()
	if !ok {
		return errors.New("sessionID not found")
	}
	return s.writeText(data, 5)
}

// BroadcastUser writes to every session of one user.
func (m *ConnManager) BroadcastUser(uid string, data []byte) error {
	m.mu.RLock()
	sessions := make([]*WsSession, 0, len(m.byUser[uid]))
	for _, s := range m.byUser[uid] {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	var lastErr error
	for _, s := range sessions {
		if err := s.writeText(data, 5); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []*WsSession

	m.mu.Lock()
	for sid, s := range m.bySess {
		if now.After(s.ExpireAt) {
			expired = append(expired, s)
			delete(m.bySess, sid)
			if mm := m.byUser[s.UID]; mm != nil {
				delete(mm, sid)
				if len(mm) == 0 {
					delete(m.byUser, s.UID)
				}
			}
		}
	}
	m.mu.Unlock()

	// close outside the lock
	for _, s := range expired {
		s.teardown()
	}
}

func (s *WsSession) writeText(data []byte, deadlineSec int) error {
	if s.Conn == nil {
		return errors.New("nil conn")
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.Conn.SetWriteDeadline(time.Now().Add(time.Duration(deadlineSec) * time.Second)); err != nil {
		return err
	}
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

func closeQuiet(c *websocket.Conn) {
	if c != nil {
		_ = c.Close()
	}
}

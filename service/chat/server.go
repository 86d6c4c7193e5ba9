package chat

import (
	"context"
	"net/http"
	"time"

	"FCProject/logger"
	chatservice "FCProject/module/chat/service"
	usermodel "FCProject/module/user/model"
	"FCProject/service/natsx"
	"FCProject/service/notify"
	"FCProject/service/storage"
	"FCProject/tools/errs"
	"FCProject/tools/ids"
	"FCProject/tools/safe"
	jwtlib "FCProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ServerConfig struct {
	JWT     jwtlib.Options
	Manager ManagerConf
	// presence renewal period; must stay under the presence TTL
	HeartbeatEvery time.Duration
	// history rows pushed on watch
	BackfillLimit int64
}

func (c *ServerConfig) norm() {
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 20 * time.Second
	}
	if c.BackfillLimit <= 0 {
		c.BackfillLimit = 50
	}
}

// Server is the websocket gateway: one goroutine per connection,
// room and presence pushes delivered over the session's socket.
type Server struct {
	cfg ServerConfig
	cm  *ConnManager
	// db resolves lazily; storage may still be connecting at boot
	db       func() (*mongo.Database, bool)
	nats     *natsx.NatsManager
	presence *storage.PresenceManager
	notifier *notify.Notifier
	upgrader websocket.Upgrader
}

func NewServer(cfg ServerConfig, db func() (*mongo.Database, bool), nats *natsx.NatsManager, presence *storage.PresenceManager, notifier *notify.Notifier) *Server {
	cfg.norm()
	return &Server{
		cfg:      cfg,
		cm:       NewConnManager(cfg.Manager, "gw-"+ids.GenerateString()),
		db:       db,
		nats:     nats,
		presence: presence,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Manager() *ConnManager { return s.cm }

func (s *Server) Close() { s.cm.Close() }

// HandleWS authenticates, upgrades and then serves the connection
// until the read loop ends.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	claims, err := jwtlib.Verify(s.cfg.JWT, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errs.ErrTokenInvalid.Code, "msg": errs.ErrTokenInvalid.Msg})
		return
	}
	uid := claims.Subject()
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": errs.ErrTokenInvalid.Code, "msg": "subject missing"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[gateway] upgrade uid=%s: %v", uid, err)
		return
	}

	sessionID := ids.GenerateString()
	sess, err := s.cm.Add(uid, sessionID, conn)
	if err != nil {
		closeQuiet(conn)
		return
	}
	s.cm.AttachPongHandler(conn, sessionID)

	ctx := context.Background()
	if err := s.presence.Track(ctx, uid); err != nil {
		logger.Warnf("[gateway] track uid=%s: %v", uid, err)
	}
	s.startPresenceHeartbeat(sess)
	s.startPresenceFeed(ctx, sess)

	_ = s.cm.SendOne(sessionID, BuildAck(0, map[string]any{
		"sessionId": sessionID,
		"uid":       uid,
		"gatewayId": s.cm.GwID(),
	}))
	logger.Infof("[gateway] connected uid=%s session=%s", uid, sessionID)

	s.readLoop(sess)

	s.cm.Remove(sessionID)
	if !s.cm.UserOnline(uid) {
		if err := s.presence.Untrack(ctx, uid); err != nil {
			logger.Warnf("[gateway] untrack uid=%s: %v", uid, err)
		}
	}
	logger.Infof("[gateway] disconnected uid=%s session=%s", uid, sessionID)
}

// startPresenceHeartbeat renews the Redis marker while the socket
// lives. The ticker stops with the session.
func (s *Server) startPresenceHeartbeat(sess *WsSession) {
	stop := make(chan struct{})
	sess.OwnCancel(func() { close(stop) })

	safe.Go(func() {
		t := time.NewTicker(s.cfg.HeartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := s.presence.Heartbeat(ctx, sess.UID); err != nil {
					logger.Warnf("[gateway] heartbeat uid=%s: %v", sess.UID, err)
				}
				cancel()
			}
		}
	})
}

// startPresenceFeed forwards presence changes of the user's friends
// to this session. The friend set is re-resolved on a short window so
// friendships accepted while connected feed through.
func (s *Server) startPresenceFeed(ctx context.Context, sess *WsSession) {
	friends := newFriendCache(30*time.Second, nil, func() map[string]struct{} {
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.friendSet(fctx, sess.UID)
	})
	cancel, err := s.presence.Subscribe(ctx, func(ev storage.PresenceEvent) {
		if !friends.Has(ev.UID) {
			return
		}
		_ = s.cm.SendOne(sess.SessionID, BuildPush(FramePresence, map[string]any{
			"uid":        ev.UID,
			"online":     ev.Online,
			"lastSeenAt": ev.LastSeenAt,
		}))
	})
	if err != nil {
		logger.Warnf("[gateway] presence feed uid=%s: %v", sess.UID, err)
		return
	}
	sess.OwnCancel(cancel)
}

func (s *Server) database() (*mongo.Database, error) {
	if s.db != nil {
		if db, ok := s.db(); ok {
			return db, nil
		}
	}
	return nil, errs.NewCodeError(500, "storage not ready").Wrap()
}

func (s *Server) friendSet(ctx context.Context, uid string) map[string]struct{} {
	out := map[string]struct{}{}
	db, err := s.database()
	if err != nil {
		return out
	}
	var u usermodel.User
	if err := usermodel.Collection(db).FindOne(ctx, bson.M{"uid": uid}).Decode(&u); err != nil {
		return out
	}
	for _, f := range u.Normalize().Friends {
		out[f.UID] = struct{}{}
	}
	return out
}

func (s *Server) readLoop(sess *WsSession) {
	// room watches opened by this session; all released on teardown
	watches := newWatchSet()
	sess.OwnCancel(watches.CancelAll)

	for {
		_, raw, err := sess.Conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := ParseFrame(raw)
		if err != nil {
			_ = s.cm.SendOne(sess.SessionID, BuildError(0, err))
			continue
		}
		if err := s.dispatch(sess, watches, f); err != nil {
			_ = s.cm.SendOne(sess.SessionID, BuildError(f.Seq, err))
		}
	}
}

func (s *Server) dispatch(sess *WsSession, watches *watchSet, f *Frame) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch f.Type {
	case FramePing:
		_ = s.cm.Heartbeat(sess.SessionID)
		if err := s.presence.Heartbeat(ctx, sess.UID); err != nil {
			logger.Warnf("[gateway] heartbeat uid=%s: %v", sess.UID, err)
		}
		return s.cm.SendOne(sess.SessionID, BuildAck(f.Seq, map[string]any{"pong": true}))

	case FrameWatch:
		p, err := ExtractWatchPayload(f)
		if err != nil {
			return err
		}
		return s.handleWatch(ctx, sess, watches, f.Seq, p.PeerUID)

	case FrameUnwatch:
		p, err := ExtractWatchPayload(f)
		if err != nil {
			return err
		}
		watches.Cancel(roomIDFor(sess.UID, p.PeerUID))
		return s.cm.SendOne(sess.SessionID, BuildAck(f.Seq, nil))

	case FrameFeedWatch:
		return s.handleFeedWatch(ctx, sess, f.Seq)

	case FrameSend:
		p, err := ExtractSendPayload(f)
		if err != nil {
			return err
		}
		db, err := s.database()
		if err != nil {
			return err
		}
		msg, err := chatservice.Send(ctx, db, s.nats, s.notifier, chatservice.SendInput{
			FromUID: sess.UID,
			ToUID:   p.PeerUID,
			Text:    p.Text,
			Image:   p.Image,
		})
		if err != nil {
			return err
		}
		return s.cm.SendOne(sess.SessionID, BuildAck(f.Seq, map[string]any{"message": msg}))

	default:
		return errs.ErrArgs.WrapMsg("unknown frame type", "type", f.Type)
	}
}

func (s *Server) handleWatch(ctx context.Context, sess *WsSession, watches *watchSet, seq int64, peerUID string) error {
	if peerUID == "" {
		return errs.ErrArgs.WrapMsg("peerUid empty")
	}
	roomID := roomIDFor(sess.UID, peerUID)

	db, err := s.database()
	if err != nil {
		return err
	}
	history, err := chatservice.Transcript(ctx, db, roomID, s.cfg.BackfillLimit)
	if err != nil {
		return err
	}

	cancel, err := s.watchRoom(sess, roomID)
	if err != nil {
		return err
	}
	watches.Set(roomID, cancel)

	return s.cm.SendOne(sess.SessionID, BuildAck(seq, map[string]any{
		"roomId":  roomID,
		"history": history,
	}))
}

// handleFeedWatch opens the recent-chats live view: backfill via the
// feed watcher, then one push per incoming message. The watcher dies
// with the session.
func (s *Server) handleFeedWatch(ctx context.Context, sess *WsSession, seq int64) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	var me usermodel.User
	if err := usermodel.Collection(db).FindOne(ctx, bson.M{"uid": sess.UID}).Decode(&me); err != nil {
		return errs.ErrUserNotFound.Wrap()
	}

	w, err := chatservice.StartFeedWatcher(ctx, db, s.nats, sess.UID, me.Normalize().Friends, func(e chatservice.FeedEntry) {
		_ = s.cm.SendOne(sess.SessionID, BuildPush(FrameFeed, map[string]any{"entry": e}))
	})
	if err != nil {
		return err
	}
	sess.OwnCancel(w.Close)

	return s.cm.SendOne(sess.SessionID, BuildAck(seq, map[string]any{
		"entries": w.Feed().Entries(),
	}))
}

func bearerToken(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

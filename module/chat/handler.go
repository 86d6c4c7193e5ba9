package chat

import (
	"strconv"

	"FCProject/global"
	midsec "FCProject/middleware/security"
	chatmodel "FCProject/module/chat/model"
	"FCProject/module/chat/service"
	userservice "FCProject/module/user/service"
	mgoSrv "FCProject/service/mgo"
	"FCProject/tools/errs"
	"FCProject/tools/resp"

	"github.com/gin-gonic/gin"
)

type sendReq struct {
	PeerUID string `json:"peerUid" binding:"required"`
	Text    string `json:"text"`
	Image   string `json:"image"`
}

// HandlerSend is the REST fallback for clients without a live socket.
func HandlerSend(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	msg, err := service.Send(c.Request.Context(), mgoSrv.GetDB(), global.Nats(), global.Notifier(), service.SendInput{
		FromUID: midsec.CallerUID(c),
		ToUID:   req.PeerUID,
		Text:    req.Text,
		Image:   req.Image,
	})
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, msg)
}

// HandlerTranscript returns the direct-room history with the peer.
func HandlerTranscript(c *gin.Context) {
	peer := c.Param("uid")
	if peer == "" {
		resp.Fail(c, errs.ErrArgs.WrapMsg("peer uid empty"))
		return
	}
	roomID := chatmodel.RoomID(midsec.CallerUID(c), peer)
	limit := parseInt64(c.Query("limit"), 0)

	msgs, err := service.Transcript(c.Request.Context(), mgoSrv.GetDB(), roomID, limit)
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, gin.H{"roomId": roomID, "messages": msgs})
}

func HandlerDeleteMessage(c *gin.Context) {
	msgID := c.Param("id")
	if msgID == "" {
		resp.Fail(c, errs.ErrArgs.WrapMsg("message id empty"))
		return
	}
	if err := service.Delete(c.Request.Context(), mgoSrv.GetDB(), global.Nats(), midsec.CallerUID(c), msgID); err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

// HandlerRecentFeed is the recent-chats snapshot: the newest message
// per friend, newest first.
func HandlerRecentFeed(c *gin.Context) {
	ctx := c.Request.Context()
	db := mgoSrv.GetDB()
	uid := midsec.CallerUID(c)

	me, err := userservice.GetUser(ctx, db, uid)
	if err != nil {
		resp.Fail(c, err)
		return
	}

	feed := service.NewFeed(uid)
	for _, fr := range me.Friends {
		latest, err := service.Latest(ctx, db, chatmodel.RoomID(uid, fr.UID))
		if err != nil {
			resp.Fail(c, err)
			return
		}
		if latest != nil {
			feed.Upsert(fr, *latest)
		}
	}
	resp.OK(c, feed.Entries())
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	x, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return x
}

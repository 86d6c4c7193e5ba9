package user

import (
	"time"

	"FCProject/global"
	"FCProject/logger"
	midsec "FCProject/middleware/security"
	"FCProject/module/user/service"
	mgoSrv "FCProject/service/mgo"
	"FCProject/service/storage"
	"FCProject/tools/errs"
	"FCProject/tools/resp"
	jwtlib "FCProject/tools/security"

	"github.com/gin-gonic/gin"
)

type loginReq struct {
	UID         string `json:"uid" binding:"required"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
	DeviceType  string `json:"deviceType"`
	DeviceID    string `json:"deviceId"`
}

// HandlerLogin signs the caller in, creating the account document on
// first contact.
func HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	rec, err := service.Login(c.Request.Context(), mgoSrv.GetDB(), global.GetJwtOptions(), service.LoginParams{
		UserID:      req.UID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhotoURL:    req.PhotoURL,
		DeviceType:  req.DeviceType,
		DeviceID:    req.DeviceID,
	})
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, gin.H{
		"token":     rec.AccessToken,
		"sessionId": rec.SessionID,
		"expireAt":  rec.ExpireAt.UnixMilli(),
	})
}

// HandlerLogout invalidates the session and untracks presence, the
// graceful sign-out path.
func HandlerLogout(c *gin.Context) {
	uid := midsec.CallerUID(c)
	token, _ := c.Get(midsec.CtxTokenKey)
	hash := ""
	if s, ok := token.(string); ok {
		hash = jwtlib.HashToken(s)
	}
	if err := service.Logout(c.Request.Context(), mgoSrv.GetDB(), uid, hash); err != nil {
		resp.Fail(c, err)
		return
	}
	if p := global.Presence(); p != nil {
		if err := p.Untrack(c.Request.Context(), uid); err != nil {
			logger.Warnf("[user] untrack uid=%s: %v", uid, err)
		}
	}
	resp.OK(c, nil)
}

// HandlerMe returns the caller's own document.
func HandlerMe(c *gin.Context) {
	u, err := service.GetUser(c.Request.Context(), mgoSrv.GetDB(), midsec.CallerUID(c))
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, u)
}

// HandlerGetUser returns someone else's profile plus their presence.
func HandlerGetUser(c *gin.Context) {
	uid := c.Param("uid")
	u, err := service.GetUser(c.Request.Context(), mgoSrv.GetDB(), uid)
	if err != nil {
		resp.Fail(c, err)
		return
	}

	out := gin.H{"user": u}
	if p := global.Presence(); p != nil {
		if st, err := p.Lookup(c.Request.Context(), uid); err == nil {
			out["presence"] = gin.H{
				"online":   st.Online,
				"lastSeen": storage.FormatLastSeen(st.LastSeenAt, timeNow()),
			}
		}
	}
	resp.OK(c, out)
}

// HandlerListUsers backs the people page: everyone but the caller.
func HandlerListUsers(c *gin.Context) {
	users, err := service.ListUsers(c.Request.Context(), mgoSrv.GetDB(), midsec.CallerUID(c))
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, users)
}

func HandlerUpdateProfile(c *gin.Context) {
	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := service.UpdateProfile(c.Request.Context(), mgoSrv.GetDB(), midsec.CallerUID(c), req); err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

type deviceTokenReq struct {
	Token string `json:"token" binding:"required"`
}

func HandlerSaveDeviceToken(c *gin.Context) {
	var req deviceTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := service.SaveDeviceToken(c.Request.Context(), mgoSrv.GetDB(), midsec.CallerUID(c), req.Token); err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

type friendReq struct {
	UID string `json:"uid" binding:"required"`
}

func HandlerSendRequest(c *gin.Context) {
	var req friendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	err := service.SendRequest(c.Request.Context(), mgoSrv.GetDB(), global.Notifier(), midsec.CallerUID(c), req.UID)
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

// HandlerAcceptRequest accepts the pending request from uid.
func HandlerAcceptRequest(c *gin.Context) {
	var req friendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	err := service.AcceptRequest(c.Request.Context(), mgoSrv.GetDB(), global.Notifier(), req.UID, midsec.CallerUID(c))
	if err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

func HandlerRejectRequest(c *gin.Context) {
	var req friendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := service.RejectRequest(c.Request.Context(), mgoSrv.GetDB(), req.UID, midsec.CallerUID(c)); err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

func HandlerUnfriend(c *gin.Context) {
	var req friendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := service.Unfriend(c.Request.Context(), mgoSrv.GetDB(), midsec.CallerUID(c), req.UID); err != nil {
		resp.Fail(c, err)
		return
	}
	resp.OK(c, nil)
}

// HandlerPresenceSnapshot returns presence for a set of uids in one
// round trip, for list screens.
func HandlerPresenceSnapshot(c *gin.Context) {
	var req struct {
		UIDs []string `json:"uids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	p := global.Presence()
	if p == nil {
		resp.Fail(c, errs.NewCodeError(500, "presence unavailable").Wrap())
		return
	}
	snap, err := p.Snapshot(c.Request.Context(), req.UIDs)
	if err != nil {
		resp.Fail(c, err)
		return
	}
	out := make(map[string]gin.H, len(snap))
	now := timeNow()
	for uid, st := range snap {
		out[uid] = gin.H{
			"online":   st.Online,
			"lastSeen": storage.FormatLastSeen(st.LastSeenAt, now),
		}
	}
	resp.OK(c, out)
}

var timeNow = time.Now

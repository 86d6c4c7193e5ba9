package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FCProject/global"
	"FCProject/logger"
	mid "FCProject/middleware"
	midsec "FCProject/middleware/security"
	chathandler "FCProject/module/chat"
	statushandler "FCProject/module/status"
	userhandler "FCProject/module/user"
	gateway "FCProject/service/chat"
	mgoSrv "FCProject/service/mgo"
	"FCProject/service/storage/redis"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	global.ConfigAll(ctx)
	midsec.Configure(global.GetJwtOptions())

	gw := gateway.NewServer(gateway.ServerConfig{
		JWT: global.GetJwtOptions(),
	}, mgoSrv.TryGetDB, global.Nats(), global.Presence(), global.Notifier())

	r := gin.Default()
	r.Use(mid.Origin())
	registerRoutes(r, gw)

	addr := ":8080"
	if p := os.Getenv("FC_HTTP_ADDR"); p != "" {
		addr = p
	}
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Infof("[boot] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[boot] serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("[boot] shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	gw.Close()
	if n := global.Nats(); n != nil {
		_ = n.Close()
	}
	redis.CloseRedis()
	cancel()
}

func registerRoutes(r *gin.Engine, gw *gateway.Server) {
	auth := mid.RouteOpt{IsAuth: true}
	open := mid.RouteOpt{IsAuth: false}

	api := r.Group("/api")

	// auth
	mid.POST(api, "/login", userhandler.HandlerLogin, open)
	mid.POST(api, "/logout", userhandler.HandlerLogout, auth)

	// users and friends
	mid.GET(api, "/me", userhandler.HandlerMe, auth)
	mid.POST(api, "/me/profile", userhandler.HandlerUpdateProfile, auth)
	mid.POST(api, "/me/device-token", userhandler.HandlerSaveDeviceToken, auth)
	mid.GET(api, "/users", userhandler.HandlerListUsers, auth)
	mid.GET(api, "/users/:uid", userhandler.HandlerGetUser, auth)
	mid.POST(api, "/presence/snapshot", userhandler.HandlerPresenceSnapshot, auth)
	mid.POST(api, "/friends/request", userhandler.HandlerSendRequest, auth)
	mid.POST(api, "/friends/accept", userhandler.HandlerAcceptRequest, auth)
	mid.POST(api, "/friends/reject", userhandler.HandlerRejectRequest, auth)
	mid.POST(api, "/friends/unfriend", userhandler.HandlerUnfriend, auth)

	// chat
	mid.POST(api, "/chat/send", chathandler.HandlerSend, auth)
	mid.GET(api, "/chat/with/:uid", chathandler.HandlerTranscript, auth)
	mid.DELETE(api, "/chat/messages/:id", chathandler.HandlerDeleteMessage, auth)
	mid.GET(api, "/chat/recent", chathandler.HandlerRecentFeed, auth)

	// statuses
	mid.POST(api, "/status/upload", statushandler.HandlerUpload, auth)
	mid.GET(api, "/status/media/:id", statushandler.HandlerMedia, auth)
	mid.POST(api, "/status", statushandler.HandlerPost, auth)
	mid.GET(api, "/status", statushandler.HandlerList, auth)
	mid.POST(api, "/status/:id/viewed", statushandler.HandlerMarkViewed, auth)
	mid.DELETE(api, "/status/:id", statushandler.HandlerDelete, auth)

	// websocket gateway; token arrives as query param
	r.GET("/ws", gw.HandleWS)
}

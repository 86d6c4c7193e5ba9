package global

import (
	"context"
	"os"
	"strings"
	"time"

	"FCProject/logger"
	chatservice "FCProject/module/chat/service"
	ka "FCProject/service/kafka"
	mgoSrv "FCProject/service/mgo"
	"FCProject/service/natsx"
	"FCProject/service/notify"
	"FCProject/service/storage"
	fcredis "FCProject/service/storage/redis"
	"FCProject/tools/ids"
	"FCProject/tools/safe"
	jwtlib "FCProject/tools/security"
)

var (
	natsManager *natsx.NatsManager
	presenceMgr *storage.PresenceManager
	notifier    *notify.Notifier
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ConfigAll boots every backing service. Mongo and Kafka come up
// asynchronously; HTTP handlers wait on readiness where they must.
func ConfigAll(ctx context.Context) {
	ConfigIds()
	ConfigRedis()
	ConfigMgo(ctx)
	ConfigNats()
	ConfigKafka(ctx)
	ConfigNotifier()
}

func ConfigIds() {
	ids.SetNodeID(100)
}

func GetJwtSecret() []byte {
	return []byte(env("FC_JWT_SECRET", "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="))
}

func GetJwtOptions() jwtlib.Options {
	return jwtlib.DefaultOptions(GetJwtSecret())
}

func ConfigRedis() {
	err := fcredis.InitRedis(fcredis.Config{
		Addr:     env("FC_REDIS_ADDR", "127.0.0.1:6379"),
		Password: env("FC_REDIS_PASSWORD", ""),
		DB:       0,
	})
	if err != nil {
		logger.Errorf("[boot] redis init: %v", err)
		return
	}
	presenceMgr = storage.NewPresenceManager(storage.PresenceConfig{OnlineTTL: 60 * time.Second})
}

func ConfigMgo(ctx context.Context) {
	cfg := &mgoSrv.Config{
		Uri:         env("FC_MONGO_URI", "mongodb://localhost:27017"),
		Database:    env("FC_MONGO_DB", "friendlyChat"),
		Username:    env("FC_MONGO_USER", ""),
		Password:    env("FC_MONGO_PASSWORD", ""),
		MaxPoolSize: 20,
	}
	mgoSrv.StartAsync(ctx, cfg)

	safe.Go(func() {
		if err := mgoSrv.WaitReady(ctx, mgoSrv.Manager()); err != nil {
			logger.Errorf("[boot] mongo not ready: %v", err)
			return
		}
		// audit sink needs the db handle, so it waits for readiness
		chatservice.RegisterAuditSink(mgoSrv.GetDB())
		logger.Infof("[boot] mongo ready, audit sink registered")
	})
}

func ConfigNats() {
	m, err := natsx.NewNatsManager(natsx.NatsxConfig{
		Servers: strings.Split(env("FC_NATS_SERVERS", "nats://127.0.0.1:4222"), ","),
		Name:    "fcproject",
	})
	if err != nil {
		logger.Errorf("[boot] nats init: %v", err)
		return
	}
	natsManager = m
}

func ConfigKafka(ctx context.Context) {
	brokers := strings.Split(env("FC_KAFKA_BROKERS", "127.0.0.1:9092"), ",")

	safe.Go(func() {
		if err := ka.InitKafkaClient(brokers); err != nil {
			logger.Errorf("[boot] kafka client: %v", err)
			return
		}
		if err := ka.InitSyncProducerFromClient(); err != nil {
			logger.Errorf("[boot] kafka producer: %v", err)
			return
		}
		groupID := env("FC_KAFKA_GROUP", "fcproject-audit")
		if err := ka.StartConsumerGroup(ctx, brokers, groupID, []string{ka.TopicChatEvents}); err != nil {
			logger.Errorf("[boot] kafka consumer group: %v", err)
		}
	})
}

func ConfigNotifier() {
	endpoint := env("FC_NOTIFY_ENDPOINT", "")
	if endpoint == "" {
		logger.Warnf("[boot] notify endpoint unset, push disabled")
	}
	notifier = notify.NewNotifier(notify.Config{Endpoint: endpoint})
}

func Nats() *natsx.NatsManager { return natsManager }

func Presence() *storage.PresenceManager { return presenceMgr }

func Notifier() *notify.Notifier { return notifier }

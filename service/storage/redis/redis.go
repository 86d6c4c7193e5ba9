package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	initOnce sync.Once
	client   *redis.Client
)

// Config is the presence store connection. One logical DB is enough;
// presence keys carry their own prefix.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// InitRedis connects the process-wide client and pings it once, so a
// bad address fails at boot instead of on the first presence write.
func InitRedis(c Config) error {
	var initErr error
	initOnce.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = err
			return
		}
		client = rdb
	})
	return initErr
}

func GetRedis() *redis.Client {
	if client == nil {
		panic("redis not initialized, call InitRedis first")
	}
	return client
}

func CloseRedis() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

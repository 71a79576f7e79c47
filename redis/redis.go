package redis

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

var (
	Client *redis.Client
	Ctx    = context.Background()
)

// InitRedis connects the change-feed client. The feed is best-effort: if
// redis is down the app still works, it just falls back to the periodic
// refresh alone.
func InitRedis(addr string) {
	Client = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	if _, err := Client.Ping(Ctx).Result(); err != nil {
		log.Printf("Warning: failed to connect to Redis at %s: %v (change feed disabled)", addr, err)
		Client = nil
		return
	}
	log.Println("✅ Connected to Redis")
}

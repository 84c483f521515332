package startup

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/travelbuddy/internal/logger"
)

// ConnectRedisWithRetry connects to Redis with exponential backoff. Used for
// the cross-instance fan-out bridge; a single-node deployment runs without it.
func ConnectRedisWithRetry(redisURL string, maxWait time.Duration) *redis.Client {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Errorf("redis url: %v", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err != nil {
			client.Close()
			if time.Now().After(deadline) {
				logger.Errorf("redis (gave up after %v): %v", maxWait, err)
				os.Exit(1)
			}
			logger.Errorf("redis connect failed, retry in %v: %v", backoff, err)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		return client
	}
}

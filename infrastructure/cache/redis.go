package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"insight-hub/infrastructure/logger"
)

// NewCache connects a redis client. The caller tolerates a nil client; the
// hot layer degrades to pass-through.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not reachable")
		return nil, err
	}
	return client, nil
}

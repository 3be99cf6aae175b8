package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/ehrextract/pkg/common/config"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
)

const redisPingTimeout = 5 * time.Second

var (
	redisClient *redis.Client
	redisErr    error
	redisOnce   sync.Once
)

func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// GetRedis returns the shared client, or the ping error when Redis is not
// reachable at startup. Callers run without a row cache in that case.
func GetRedis(cfg *config.Config) (*redis.Client, error) {
	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()

		redisClient, redisErr = connectRedis(ctx, RedisOptions(cfg))
		if redisErr != nil {
			logger.Log.WithError(redisErr).Error("Failed to connect to Redis")
			return
		}
		logger.Log.WithField("addr", redisClient.Options().Addr).Info("Connected to Redis")
	})

	return redisClient, redisErr
}

func connectRedis(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}

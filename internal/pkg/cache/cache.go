package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shravanlabs/shravan/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Redis cache server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// SetClient overrides the cache client, used by tests with miniature servers.
func SetClient(c *redis.Client) {
	client = c
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// DeleteByPattern removes all keys matching the given glob pattern using SCAN
// so large keyspaces are walked incrementally instead of blocking Redis.
func DeleteByPattern(pattern string) (int64, error) {
	rdb := GetClient()
	var deleted int64

	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0, 100)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			n, err := rdb.Del(ctx, keys...).Result()
			deleted += n
			if err != nil {
				return deleted, err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if len(keys) > 0 {
		n, err := rdb.Del(ctx, keys...).Result()
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// InvalidateUserCaches purges every cached read-view that embeds
// subscription-gated content for the given user. Failures are logged and
// swallowed; stale entries self-expire via their own TTL.
func InvalidateUserCaches(userID uint) {
	patterns := []string{
		fmt.Sprintf("cache:user:%d:*", userID),
		fmt.Sprintf("cache:library:%d:*", userID),
		fmt.Sprintf("cache:home:%d", userID),
	}

	for _, pattern := range patterns {
		if _, err := DeleteByPattern(pattern); err != nil {
			log.Printf("[Cache] failed to invalidate pattern %s for user %d: %v", pattern, userID, err)
		}
	}
}

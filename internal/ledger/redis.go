package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Ledger shared by every instance pointing at the same server.
// Claims are SET NX with a TTL.
type Redis struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// RedisConfig holds connection settings for the Redis ledger.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ledger: redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "unitrade:notify:sent"
	}
	return &Redis{client: client, ttl: cfg.TTL, keyPrefix: prefix}, nil
}

func (r *Redis) key(k Key) string {
	return r.keyPrefix + ":" + string(k)
}

func (r *Redis) Claim(ctx context.Context, key Key, payload []byte) (bool, error) {
	value := payload
	if len(value) == 0 {
		value = []byte("1")
	}
	ok, err := r.client.SetNX(ctx, r.key(key), value, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: redis claim: %w", err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("ledger: redis release: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

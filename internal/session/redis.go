package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/reviewbot/core/metrics"
)

const defaultKeyPrefix = "reviewbot:session:"

// RedisStore keeps sessions as JSON values with a sliding TTL, so they
// survive bot restarts.
type RedisStore struct {
	c      *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// NewRedisStore connects a client with the given options.
func NewRedisStore(opts RedisOptions) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), opts.TTL, opts.Prefix)
}

// NewRedisStoreWithClient wraps an existing client. A zero ttl keeps sessions
// forever.
func NewRedisStoreWithClient(c *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{c: c, ttl: ttl, prefix: prefix}
}

func (r *RedisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.c.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	raw, err := r.c.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveSession("redis", "miss")
		return Session{UserID: userID}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("session get %d: %w", userID, err)
	}
	metrics.ObserveSession("redis", "hit")
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("session decode %d: %w", userID, err)
	}
	s.UserID = userID
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	s.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session encode %d: %w", s.UserID, err)
	}
	metrics.ObserveSession("redis", "set")
	if err := r.c.Set(ctx, r.key(s.UserID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("session save %d: %w", s.UserID, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	metrics.ObserveSession("redis", "del")
	if err := r.c.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("session clear %d: %w", userID, err)
	}
	return nil
}

// Close releases the client.
func (r *RedisStore) Close() error {
	return r.c.Close()
}

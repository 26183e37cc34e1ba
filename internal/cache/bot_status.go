package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	botStatusPrefix  = "bot_status:"
	botSettingKey    = "bot_enabled"
	defaultStatusTTL = 10 * time.Minute
)

// ErrMiss is returned by KV.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// KV is the small slice of a key/value cache the bot status needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// SettingStore is the durable source of truth for per-user settings.
type SettingStore interface {
	Get(ctx context.Context, userID, key string) (string, bool, error)
	Set(ctx context.Context, userID, key, value string) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	client redis.UniversalClient
}

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// NewRedisClient connects to a standalone Redis and checks it answers.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// BotStatus is the per-user "bot enabled" switch. The setting store is
// authoritative; the KV cache is read-through and write-through and may be
// nil. Users without a stored value are enabled.
type BotStatus struct {
	store  SettingStore
	kv     KV
	ttl    time.Duration
	logger *logrus.Logger
}

func NewBotStatus(store SettingStore, kv KV, logger *logrus.Logger) *BotStatus {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BotStatus{store: store, kv: kv, ttl: defaultStatusTTL, logger: logger}
}

func cacheKey(userID string) string {
	return botStatusPrefix + userID
}

func encode(enabled bool) string {
	if enabled {
		return "1"
	}
	return "0"
}

// IsEnabled reports the user's bot status. On a store error it answers
// enabled together with the error.
func (b *BotStatus) IsEnabled(ctx context.Context, userID string) (bool, error) {
	if b.kv != nil {
		v, err := b.kv.Get(ctx, cacheKey(userID))
		switch {
		case err == nil:
			return v == "1", nil
		case !errors.Is(err, ErrMiss):
			b.logger.WithError(err).WithField("user_id", userID).Warn("Bot status cache read failed")
		}
	}

	v, ok, err := b.store.Get(ctx, userID, botSettingKey)
	if err != nil {
		return true, err
	}
	enabled := !ok || v == "1"
	b.fill(ctx, userID, enabled)
	return enabled, nil
}

// SetEnabled writes the store first, then refreshes the cache.
func (b *BotStatus) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	if err := b.store.Set(ctx, userID, botSettingKey, encode(enabled)); err != nil {
		return err
	}
	b.fill(ctx, userID, enabled)
	return nil
}

func (b *BotStatus) fill(ctx context.Context, userID string, enabled bool) {
	if b.kv == nil {
		return
	}
	if err := b.kv.Set(ctx, cacheKey(userID), encode(enabled), b.ttl); err != nil {
		b.logger.WithError(err).WithField("user_id", userID).Warn("Bot status cache write failed")
	}
}

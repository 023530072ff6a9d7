// Package counter is the windowed counter store shared by limit enforcement,
// rule handlers and hot-campaign detection. Every mutation is a single round
// trip so callers never read-then-write across two requests.
package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/the-monkeys/incentives/config"
	"go.uber.org/zap"
)

// Store is a key-value counter abstraction with per-key time-to-live.
type Store interface {
	// Increment atomically adds one to key and (re)sets its expiry to ttl.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// HashIncrement atomically adds one to field of the hash at key and (re)sets the hash expiry.
	HashIncrement(ctx context.Context, key, field string, ttl time.Duration) (int64, error)
	// MembershipAdd adds member to setKey. A positive ttl refreshes the set expiry.
	MembershipAdd(ctx context.Context, setKey, member string, ttl time.Duration) error
	MembershipTest(ctx context.Context, setKey, member string) (bool, error)
	MembershipList(ctx context.Context, setKey string) ([]string, error)
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	Cardinality(ctx context.Context, setKey string) (int64, error)
}

const scanBatch = 100

type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// RedisConn opens a pooled client and verifies it with a ping.
func RedisConn(ctx context.Context, cfg config.Redis, log *zap.SugaredLogger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Host,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MaxIdle,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", cfg.Host, err)
	}

	log.Infof("✅ the monkeys incentives service is connected to redis at: %v", cfg.Host)
	return rdb, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) HashIncrement(ctx context.Context, key, field string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, field, 1)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("hash increment %s[%s]: %w", key, field, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) MembershipAdd(ctx context.Context, setKey, member string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, setKey, member)
		if ttl > 0 {
			pipe.Expire(ctx, setKey, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("add %s to %s: %w", member, setKey, err)
	}
	return nil
}

func (s *RedisStore) MembershipTest(ctx context.Context, setKey, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, setKey, member).Result()
	if err != nil {
		return false, fmt.Errorf("test %s in %s: %w", member, setKey, err)
	}
	return ok, nil
}

func (s *RedisStore) MembershipList(ctx context.Context, setKey string) ([]string, error) {
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", setKey, err)
	}
	return members, nil
}

func (s *RedisStore) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (s *RedisStore) Cardinality(ctx context.Context, setKey string) (int64, error) {
	n, err := s.client.SCard(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("cardinality %s: %w", setKey, err)
	}
	return n, nil
}

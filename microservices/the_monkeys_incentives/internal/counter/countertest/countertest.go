// Package countertest provides a Redis-backed counter store for tests.
package countertest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter"
)

// New starts an in-process Redis server bound to t and returns a store on top of it.
func New(t testing.TB) (*counter.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return counter.NewRedisStore(client), mr
}

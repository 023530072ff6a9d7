package counter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter/countertest"
)

func TestIncrementSetsExpiry(t *testing.T) {
	store, mr := countertest.New(t)
	ctx := context.Background()

	n, err := store.Increment(ctx, "limit:a:u", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Increment(ctx, "limit:a:u", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, time.Minute, mr.TTL("limit:a:u"))

	mr.FastForward(time.Minute + time.Second)
	assert.False(t, mr.Exists("limit:a:u"))

	n, err = store.Increment(ctx, "limit:a:u", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIncrementIsAtomicUnderConcurrency(t *testing.T) {
	store, _ := countertest.New(t)
	ctx := context.Background()

	const workers = 50
	seen := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Increment(ctx, "k", time.Hour)
			assert.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for n := range seen {
		unique[n] = true
	}
	assert.Len(t, unique, workers)
	assert.True(t, unique[workers])
}

func TestHashIncrement(t *testing.T) {
	store, mr := countertest.New(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := store.HashIncrement(ctx, "cms:t:1", "c1", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}
	n, err := store.HashIncrement(ctx, "cms:t:1", "c2", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 10*time.Minute, mr.TTL("cms:t:1"))
}

func TestMembership(t *testing.T) {
	store, mr := countertest.New(t)
	ctx := context.Background()

	require.NoError(t, store.MembershipAdd(ctx, "hot:set:t1", "c1", 20*time.Minute))
	require.NoError(t, store.MembershipAdd(ctx, "hot:set:t1", "c2", 0))
	require.NoError(t, store.MembershipAdd(ctx, "hot:set:t2", "c3", 20*time.Minute))

	ok, err := store.MembershipTest(ctx, "hot:set:t1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MembershipTest(ctx, "hot:set:t1", "c3")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := store.MembershipList(ctx, "hot:set:t1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, members)

	n, err := store.Cardinality(ctx, "hot:set:t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	keys, err := store.ScanKeys(ctx, "hot:set:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hot:set:t1", "hot:set:t2"}, keys)

	mr.FastForward(21 * time.Minute)
	n, err = store.Cardinality(ctx, "hot:set:t1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreKVExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cooldown:ocr", "1", 30*time.Second))

	val, ok, err := store.Get(ctx, "cooldown:ocr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", val)

	now = now.Add(31 * time.Second)
	_, ok, err = store.Get(ctx, "cooldown:ocr")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreGetReadsCounter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Increment(ctx, "errors:ocr", time.Minute, 10)
	require.NoError(t, err)
	_, err = store.Increment(ctx, "errors:ocr", time.Minute, 10)
	require.NoError(t, err)

	val, ok, err := store.Get(ctx, "errors:ocr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", val)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, _ = store.Increment(ctx, "hot", time.Minute, goroutines)
		}()
	}
	wg.Wait()

	res, err := store.Increment(ctx, "hot", time.Minute, goroutines)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines+1), res.Count)
	assert.False(t, res.Allowed)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(maxSize int) *Cache {
	return New(hclog.NewNullLogger(), maxSize)
}

func TestGetSet(t *testing.T) {
	c := newTestCache(10)
	c.Set("key", "value", time.Minute, "")

	val, ok := c.Get("key", "")
	require.True(t, ok)
	assert.Equal(t, "value", val)

	_, ok = c.Get("missing", "")
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(10)
	c.Set("key", "value", 10*time.Millisecond, "")

	_, ok := c.Get("key", "")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("key", "")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestChecksumInvalidation(t *testing.T) {
	c := newTestCache(10)
	c.Set("playlist", []string{"a", "b"}, time.Minute, "v1")

	// matching checksum serves the entry
	_, ok := c.Get("playlist", "v1")
	assert.True(t, ok)

	// empty checksum skips validation
	_, ok = c.Get("playlist", "")
	assert.True(t, ok)

	// mismatch drops the entry
	_, ok = c.Get("playlist", "v2")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRUEviction(t *testing.T) {
	c := newTestCache(2)
	c.Set("a", 1, time.Minute, "")
	c.Set("b", 2, time.Minute, "")

	// touch a so b becomes the eviction candidate
	_, ok := c.Get("a", "")
	require.True(t, ok)

	c.Set("c", 3, time.Minute, "")
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b", "")
	assert.False(t, ok)
	_, ok = c.Get("a", "")
	assert.True(t, ok)
	_, ok = c.Get("c", "")
	assert.True(t, ok)
}

func TestGetOrComputeSingleflight(t *testing.T) {
	c := newTestCache(10)
	var calls atomic.Int32
	var start sync.WaitGroup
	start.Add(1)

	producer := func(ctx context.Context) (any, error) {
		calls.Add(1)
		start.Wait()
		return "computed", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := c.GetOrCompute(context.Background(), "key", time.Minute, producer)
			assert.NoError(t, err)
			results[i] = val
		}(i)
	}
	// let the goroutines pile up on the singleflight before releasing
	time.Sleep(20 * time.Millisecond)
	start.Done()
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, val := range results {
		assert.Equal(t, "computed", val)
	}

	// second round hits the cache
	val, err := c.GetOrCompute(context.Background(), "key", time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, "computed", val)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrComputeError(t *testing.T) {
	c := newTestCache(10)
	wantErr := errors.New("provider down")
	_, err := c.GetOrCompute(context.Background(), "key", time.Minute, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	// failures are not cached
	assert.Equal(t, 0, c.Len())
}

func TestDeleteAndClear(t *testing.T) {
	c := newTestCache(10)
	c.Set("a", 1, time.Minute, "")
	c.Set("b", 2, time.Minute, "")

	c.Delete("a")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

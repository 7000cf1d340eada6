package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forecast struct {
	Commodity string    `json:"commodity"`
	Prices    []float64 `json:"prices"`
}

func TestMemoryCacheRoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10)

	in := forecast{Commodity: "soja", Prices: []float64{101.5, 102}}
	require.NoError(t, mc.Set(ctx, "f", in, time.Minute))

	var out forecast
	require.NoError(t, mc.Get(ctx, "f", &out))
	assert.Equal(t, in, out)

	// stored bytes are not shared with the caller
	out.Prices[0] = 0
	var again forecast
	require.NoError(t, mc.Get(ctx, "f", &again))
	assert.Equal(t, 101.5, again.Prices[0])

	assert.ErrorIs(t, mc.Get(ctx, "missing", &out), ErrCacheMiss)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", "v", time.Second))
	var s string
	require.NoError(t, mc.Get(ctx, "k", &s))
	assert.Equal(t, "v", s)

	now = now.Add(time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Zero(t, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(2)

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	var n int
	require.NoError(t, mc.Get(ctx, "a", &n)) // b is now the oldest
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &n), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &n))
	assert.Equal(t, 1, n)
	require.NoError(t, mc.Get(ctx, "c", &n))
	assert.Equal(t, 3, n)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10)
	for _, k := range []string{"predict:yield:1", "predict:price:2", "other:1"} {
		require.NoError(t, mc.Set(ctx, k, k, 0))
	}

	require.NoError(t, mc.DeleteByPattern(ctx, "predict:*"))
	assert.Equal(t, 1, mc.Len())
	var s string
	require.NoError(t, mc.Get(ctx, "other:1", &s))

	assert.Error(t, mc.DeleteByPattern(ctx, "[bad"))
}

func TestLayeredCacheReadsThroughToL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache(10)
	lc := NewLayeredCache(NewMemoryCache(10), l2, time.Minute)

	require.NoError(t, l2.Set(ctx, "k", forecast{Commodity: "milho"}, time.Hour))
	var out forecast
	require.NoError(t, lc.Get(ctx, "k", &out))
	assert.Equal(t, "milho", out.Commodity)

	// served from L1 after the first read
	require.NoError(t, l2.Delete(ctx, "k"))
	require.NoError(t, lc.Get(ctx, "k", &out))

	require.NoError(t, lc.Set(ctx, "j", forecast{Commodity: "cafe"}, time.Hour))
	require.NoError(t, l2.Get(ctx, "j", &out))
	assert.Equal(t, "cafe", out.Commodity)

	require.NoError(t, lc.DeleteByPattern(ctx, "*"))
	assert.ErrorIs(t, lc.Get(ctx, "j", &out), ErrCacheMiss)
}

func TestHashKeyIsStable(t *testing.T) {
	a, err := HashKey("predict:price", forecast{Commodity: "soja", Prices: []float64{1, 2}})
	require.NoError(t, err)
	b, err := HashKey("predict:price", forecast{Commodity: "soja", Prices: []float64{1, 2}})
	require.NoError(t, err)
	c, err := HashKey("predict:price", forecast{Commodity: "soja", Prices: []float64{1, 3}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "predict:price:")

	_, err = HashKey("x", func() {})
	assert.Error(t, err)
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(10)
	calls := 0
	load := func(context.Context) (forecast, error) {
		calls++
		return forecast{Commodity: fmt.Sprint("call-", calls)}, nil
	}

	v, hit, err := Remember(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "call-1", v.Commodity)

	v, hit, err = Remember(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "call-1", v.Commodity)
	assert.Equal(t, 1, calls)

	boom := errors.New("model unavailable")
	_, _, err = Remember(ctx, mc, "e", time.Minute, func(context.Context) (forecast, error) { return forecast{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, mc.Get(ctx, "e", &v), ErrCacheMiss, "errors are not cached")

	v, hit, err = Remember[forecast](ctx, nil, "k", time.Minute, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "call-2", v.Commodity)
}

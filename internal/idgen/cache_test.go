package idgen

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheTierBoundaries(t *testing.T) {
	cases := []struct {
		count int
		want  int
	}{
		{0, 4}, {99, 4},
		{100, 5}, {2_499, 5},
		{2_500, 6}, {14_999, 6},
		{15_000, 7}, {79_999, 7},
		{80_000, 8}, {1_000_000, 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, lengthForCount(c.count), "count=%d", c.count)
	}
}

func TestCacheRefreshesOnTTLExpiry(t *testing.T) {
	calls := 0
	counter := func() (int, error) {
		calls++
		return 150, nil
	}
	c := NewCache(counter, time.Minute)

	now := time.Now()
	n, err := c.GetHashLength(now)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, calls)

	// within TTL: no new counter call
	_, err = c.GetHashLength(now.Add(10 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// past TTL: refreshes
	_, err = c.GetHashLength(now.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheNotifyCreateBumpsCountBeforeTTL(t *testing.T) {
	counter := func() (int, error) { return 95, nil }
	c := NewCache(counter, time.Minute)

	now := time.Now()
	n, err := c.GetHashLength(now)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for i := 0; i < 10; i++ {
		c.NotifyCreate(now)
	}

	n, err = c.GetHashLength(now.Add(5 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "105 elements after ten NotifyCreate calls should cross into tier 5")
}

func TestCacheServesStaleValueOnCounterError(t *testing.T) {
	calls := 0
	counter := func() (int, error) {
		calls++
		if calls == 1 {
			return 50, nil
		}
		return 0, errors.New("db unavailable")
	}
	c := NewCache(counter, time.Millisecond)

	now := time.Now()
	_, err := c.GetHashLength(now)
	require.NoError(t, err)

	n, err := c.GetHashLength(now.Add(time.Second))
	require.NoError(t, err, "stale read must not fail ID generation")
	assert.Equal(t, 4, n)

	stats := c.GetStats(now.Add(time.Second))
	assert.Equal(t, int64(2), stats.Misses)
}

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detcover/pkg/models"
)

func sampleDetections(source string) []models.Detection {
	return []models.Detection{
		{TechniqueID: "T1059", Source: source, Timestamp: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		{TechniqueID: "T1078", Source: source, Timestamp: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)},
	}
}

func TestFetchRunsQueryOncePerKey(t *testing.T) {
	c := NewQueryCache(time.Minute, 16)
	var calls atomic.Int64
	fn := func(ctx context.Context) ([]models.Detection, error) {
		calls.Add(1)
		return sampleDetections("splunk"), nil
	}

	key := Key("splunk", []string{"T1059", "T1078"}, time.Unix(1000, 0), time.Unix(2000, 0))

	first, cached, err := c.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, first, 2)

	second, cached, err := c.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())
}

func TestKeyIgnoresTechniqueOrdering(t *testing.T) {
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	a := Key("elastic", []string{"T1078", "T1059", "T1003"}, start, end)
	b := Key("elastic", []string{"T1003", "T1078", "T1059"}, start, end)
	assert.Equal(t, a, b)

	other := Key("splunk", []string{"T1003", "T1078", "T1059"}, start, end)
	assert.NotEqual(t, a, other)
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c := NewQueryCache(time.Minute, 16)
	var calls atomic.Int64
	boom := errors.New("backend unavailable")
	fn := func(ctx context.Context) ([]models.Detection, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return sampleDetections("qradar"), nil
	}

	key := Key("qradar", []string{"T1059"}, time.Unix(0, 0), time.Unix(3600, 0))

	_, _, err := c.Fetch(context.Background(), key, fn)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	events, cached, err := c.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, events, 2)
}

func TestFetchExpiresAfterTTL(t *testing.T) {
	c := NewQueryCache(20*time.Millisecond, 16)
	var calls atomic.Int64
	fn := func(ctx context.Context) ([]models.Detection, error) {
		calls.Add(1)
		return sampleDetections("arcsight"), nil
	}

	key := Key("arcsight", []string{"T1021"}, time.Unix(0, 0), time.Unix(3600, 0))

	_, _, err := c.Fetch(context.Background(), key, fn)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, cached, err := c.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(2), calls.Load())
}

func TestFetchSerializesConcurrentMisses(t *testing.T) {
	c := NewQueryCache(time.Minute, 16)
	var calls atomic.Int64
	fn := func(ctx context.Context) ([]models.Detection, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return sampleDetections("splunk"), nil
	}

	key := Key("splunk", []string{"T1059"}, time.Unix(0, 0), time.Unix(3600, 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Fetch(context.Background(), key, fn)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

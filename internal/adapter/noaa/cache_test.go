package noaa

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

type fakeObsSource struct {
	calls int
	obs   map[string][]domain.DailyObservation
	err   error
}

func (f *fakeObsSource) DailyObservations(_ context.Context, stationID string, _ domain.DateRange) ([]domain.DailyObservation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.obs[stationID], nil
}

func testRange(t *testing.T) domain.DateRange {
	t.Helper()
	dr, err := domain.NewDateRange("2024-01-01", "2024-12-31")
	require.NoError(t, err)
	return dr
}

func TestCachedObservationSource_SecondLookupHits(t *testing.T) {
	source := &fakeObsSource{obs: map[string][]domain.DailyObservation{
		"S1": {{StationID: "S1", Date: "2024-01-01", Variable: domain.VarTMIN, Value: 20}},
	}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedObservationSource(source, 10, metrics)
	dr := testRange(t)

	first, err := cached.DailyObservations(context.Background(), "S1", dr)
	require.NoError(t, err)
	second, err := cached.DailyObservations(context.Background(), "S1", dr)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ObsCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ObsCacheLookups.WithLabelValues("miss")))
}

func TestCachedObservationSource_DistinctRangesMiss(t *testing.T) {
	source := &fakeObsSource{obs: map[string][]domain.DailyObservation{
		"S1": {{StationID: "S1", Date: "2024-01-01", Variable: domain.VarTMIN, Value: 20}},
	}}
	cached := NewCachedObservationSource(source, 10, observability.NewMetricsForTesting())

	dr1, err := domain.NewDateRange("2024-01-01", "2024-06-30")
	require.NoError(t, err)
	dr2, err := domain.NewDateRange("2024-07-01", "2024-12-31")
	require.NoError(t, err)

	_, err = cached.DailyObservations(context.Background(), "S1", dr1)
	require.NoError(t, err)
	_, err = cached.DailyObservations(context.Background(), "S1", dr2)
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}

func TestCachedObservationSource_EmptyResultsNotCached(t *testing.T) {
	source := &fakeObsSource{}
	cached := NewCachedObservationSource(source, 10, observability.NewMetricsForTesting())
	dr := testRange(t)

	for i := 0; i < 3; i++ {
		obs, err := cached.DailyObservations(context.Background(), "S1", dr)
		require.NoError(t, err)
		assert.Empty(t, obs)
	}
	assert.Equal(t, 3, source.calls)
}

func TestCachedObservationSource_ErrorsNotCached(t *testing.T) {
	source := &fakeObsSource{err: errors.New("provider down")}
	cached := NewCachedObservationSource(source, 10, observability.NewMetricsForTesting())
	dr := testRange(t)

	_, err := cached.DailyObservations(context.Background(), "S1", dr)
	require.Error(t, err)
	_, err = cached.DailyObservations(context.Background(), "S1", dr)
	require.Error(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := newLRUCache(2)
	obs := func(id string) []domain.DailyObservation {
		return []domain.DailyObservation{{StationID: id, Date: "2024-01-01", Variable: domain.VarTMIN, Value: 1}}
	}

	cache.put("a", obs("a"))
	cache.put("b", obs("b"))

	// Touch "a" so "b" is now the eviction candidate.
	_, ok := cache.get("a")
	require.True(t, ok)

	cache.put("c", obs("c"))

	_, ok = cache.get("a")
	assert.True(t, ok)
	_, ok = cache.get("b")
	assert.False(t, ok)
	_, ok = cache.get("c")
	assert.True(t, ok)
}

func TestLRUCache_PutExistingKeyUpdates(t *testing.T) {
	cache := newLRUCache(2)

	cache.put("a", []domain.DailyObservation{{StationID: "a", Value: 1}})
	cache.put("a", []domain.DailyObservation{{StationID: "a", Value: 2}})

	got, ok := cache.get("a")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Value)
}

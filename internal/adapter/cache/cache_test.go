package cache

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/couchcryptid/vent-capacity-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingAssessor struct {
	calls atomic.Int64
	err   error
}

func (m *countingAssessor) Assess(site domain.Site) (domain.Assessment, error) {
	m.calls.Add(1)
	if m.err != nil {
		return domain.Assessment{}, m.err
	}
	id, _ := domain.Fingerprint(site)
	return domain.Assessment{ID: id, Site: site.Name}, nil
}

func newTestCache(inner domain.Assessor, size int) (*CachedAssessor, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return NewCachedAssessor(inner, size, metrics, slog.New(slog.NewTextHandler(io.Discard, nil))), metrics
}

func site(name string, lengthFt float64) domain.Site {
	return domain.Site{
		Name: name,
		Headers: []domain.Header{{
			Name: "VRU",
			Runs: []domain.PipeRun{{NominalLabel: `3"`, InternalDiameterIn: 3.068, DevelopedLengthFt: lengthFt}},
		}},
	}
}

// --- CachedAssessor tests ---

func TestCachedAssessor_Hit(t *testing.T) {
	inner := &countingAssessor{}
	cached, metrics := newTestCache(inner, 10)

	a1, err := cached.Assess(site("Pad 1", 100))
	require.NoError(t, err)
	a2, err := cached.Assess(site("Pad 1", 100))
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, int64(1), inner.calls.Load(), "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AssessmentCache.WithLabelValues("hit")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AssessmentCache.WithLabelValues("miss")), 1e-9)
}

func TestCachedAssessor_DifferentSitesMiss(t *testing.T) {
	inner := &countingAssessor{}
	cached, _ := newTestCache(inner, 10)

	_, _ = cached.Assess(site("Pad 1", 100))
	_, _ = cached.Assess(site("Pad 1", 101))

	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, 2, cached.Len())
}

func TestCachedAssessor_ErrorsNotCached(t *testing.T) {
	inner := &countingAssessor{err: errors.New("boom")}
	cached, _ := newTestCache(inner, 10)

	_, err := cached.Assess(site("Pad 1", 100))
	require.Error(t, err)
	_, err = cached.Assess(site("Pad 1", 100))
	require.Error(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Zero(t, cached.Len())
}

func TestCachedAssessor_KeepsOriginalTimestamp(t *testing.T) {
	first := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	fake := clockwork.NewFakeClockAt(first)
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	cached, _ := newTestCache(domain.NewEngine(domain.DefaultFlashProfiles()), 10)

	a1, err := cached.Assess(site("Pad 1", 100))
	require.NoError(t, err)
	fake.Advance(time.Hour)
	a2, err := cached.Assess(site("Pad 1", 100))
	require.NoError(t, err)

	assert.Equal(t, first, a2.AssessedAt)
	assert.Equal(t, a1.TotalCapacity, a2.TotalCapacity)
}

func TestCachedAssessor_Concurrent(t *testing.T) {
	inner := &countingAssessor{}
	cached, _ := newTestCache(inner, 4)

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := cached.Assess(site("Pad", float64(i%8)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cached.Len(), 4)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", domain.Assessment{ID: "A"})
	c.put("b", domain.Assessment{ID: "B"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result.ID)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.Assessment{ID: "A"})
	c.put("b", domain.Assessment{ID: "B"})
	c.put("c", domain.Assessment{ID: "C"}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", result.ID)
	assert.Equal(t, 2, c.len())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.Assessment{ID: "A"})
	c.put("b", domain.Assessment{ID: "B"})
	c.get("a")
	c.put("c", domain.Assessment{ID: "C"})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.Assessment{ID: "A1"})
	c.put("a", domain.Assessment{ID: "A2"})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result.ID)
	assert.Equal(t, 1, c.len())
}

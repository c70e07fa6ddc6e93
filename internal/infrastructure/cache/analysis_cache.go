package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/askbase/internal/core/domain"
)

const (
	defaultCapacity = 512
	defaultTTL      = 10 * time.Minute
)

type entry struct {
	analysis  domain.QueryAnalysis
	expiresAt time.Time
}

// AnalysisCache is a TTL-bounded LRU of query analyses keyed by normalized
// query text. The LRU bounds memory; the TTL bounds staleness. Implements
// ports.AnalysisCache.
type AnalysisCache struct {
	entries *lru.Cache[string, entry]
	ttl     time.Duration
	now     func() time.Time
}

func New(capacity int, ttl time.Duration) *AnalysisCache {
	return NewWithClock(capacity, ttl, time.Now)
}

// NewWithClock injects the clock so expiry is testable.
func NewWithClock(capacity int, ttl time.Duration, now func() time.Time) *AnalysisCache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	entries, err := lru.New[string, entry](capacity)
	if err != nil {
		// lru.New only fails on non-positive capacity, guarded above.
		panic(err)
	}
	return &AnalysisCache{
		entries: entries,
		ttl:     ttl,
		now:     now,
	}
}

func (c *AnalysisCache) Get(key string) (domain.QueryAnalysis, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return domain.QueryAnalysis{}, false
	}
	if c.now().After(e.expiresAt) {
		c.entries.Remove(key)
		return domain.QueryAnalysis{}, false
	}
	return e.analysis, true
}

func (c *AnalysisCache) Set(key string, analysis domain.QueryAnalysis) {
	c.entries.Add(key, entry{
		analysis:  analysis,
		expiresAt: c.now().Add(c.ttl),
	})
}

func (c *AnalysisCache) Len() int {
	return c.entries.Len()
}

package cache

import (
	"strings"
	"time"
)

const defaultQuotaGrantTTL = 30 * time.Second

// QuotaGrant is the cached part of an API quota allocation. Usage counters are
// never cached.
type QuotaGrant struct {
	DailyQuota       int64
	QueriesPerSecond float64
}

// QuotaGrantCache stores hot-path quota grant lookups for quota checks.
type QuotaGrantCache interface {
	Get(serviceID, userID string) (QuotaGrant, bool)
	Set(serviceID, userID string, grant QuotaGrant)
	Invalidate(serviceID, userID string)
}

type quotaGrantCache struct {
	grants Cache[string, QuotaGrant]
	ttl    func() time.Duration
}

// NewQuotaGrantCache returns an in-memory grant cache. A non-positive ttl falls back
// to the default.
func NewQuotaGrantCache(ttl time.Duration) QuotaGrantCache {
	return NewReloadingQuotaGrantCache(func() time.Duration { return ttl })
}

// NewReloadingQuotaGrantCache asks ttl for the lifetime of every entry it stores, so
// a reloaded setting applies to the next Set.
func NewReloadingQuotaGrantCache(ttl func() time.Duration) QuotaGrantCache {
	return newQuotaGrantCache(ttl, time.Now)
}

func newQuotaGrantCache(ttl func() time.Duration, now func() time.Time) *quotaGrantCache {
	return &quotaGrantCache{
		grants: newTTLCache[string, QuotaGrant](now),
		ttl:    ttl,
	}
}

func (c *quotaGrantCache) Get(serviceID, userID string) (QuotaGrant, bool) {
	return c.grants.Get(cacheKey(serviceID, userID))
}

func (c *quotaGrantCache) Set(serviceID, userID string, grant QuotaGrant) {
	ttl := c.ttl()
	if ttl <= 0 {
		ttl = defaultQuotaGrantTTL
	}
	c.grants.Set(cacheKey(serviceID, userID), grant, ttl)
}

func (c *quotaGrantCache) Invalidate(serviceID, userID string) {
	c.grants.Delete(cacheKey(serviceID, userID))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}

package geocode

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nyashahama/hazard-query-backend/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory TTL cache. Lookups are
// keyed on the normalised place name.
type CachedGeocoder struct {
	inner   Geocoder
	cache   *cache.Cache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. Expired
// entries are purged every 2*ttl.
func NewCachedGeocoder(inner Geocoder, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, place string) (Result, error) {
	key := "fwd:" + strings.ToLower(strings.TrimSpace(place))
	if cached, ok := c.cache.Get(key); ok {
		if result, ok := cached.(Result); ok {
			c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
			return result, nil
		}
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, place)
	if err != nil {
		return result, err
	}
	// Only cache matches so transient "not found" responses can be retried.
	if result.Found() {
		c.cache.SetDefault(key, result)
	}
	return result, nil
}

package fx

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedProvider memoizes rate tables per API key for a bounded time.
//
// Enabling it changes what fx_as_of means in practice: the timestamp is
// still the moment of conversion, but the applied rate may be up to ttl old.
type CachedProvider struct {
	next  RateProvider
	cache *expirable.LRU[string, RateTable]
}

// NewCachedProvider wraps next. A non-positive ttl disables caching and
// returns next unchanged.
func NewCachedProvider(next RateProvider, ttl time.Duration) RateProvider {
	if ttl <= 0 {
		return next
	}
	return &CachedProvider{
		next:  next,
		cache: expirable.NewLRU[string, RateTable](16, nil, ttl),
	}
}

func (p *CachedProvider) FetchRates(ctx context.Context, apiKey string) (RateTable, error) {
	if rates, ok := p.cache.Get(apiKey); ok {
		return rates, nil
	}
	rates, err := p.next.FetchRates(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	p.cache.Add(apiKey, rates)
	return rates, nil
}

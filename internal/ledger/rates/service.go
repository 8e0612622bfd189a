package rates

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Service resolves exchange rates through the cache with the database as
// the source of truth. Concurrent lookups for the same pair and day share
// one database round trip.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService constructs a Service instance.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Rate returns the conversion rate for pair effective at asOf.
func (s *Service) Rate(ctx context.Context, pair string, asOf time.Time) (decimal.Decimal, error) {
	q, err := s.Lookup(ctx, pair, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return q.Rate, nil
}

// Lookup returns the full quote for pair effective at asOf.
func (s *Service) Lookup(ctx context.Context, pair string, asOf time.Time) (Quote, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	key := cacheKey(pair, asOf)
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		if q, ok, err := s.cache.Get(ctx, pair, asOf); err == nil && ok {
			return q, nil
		}
		q, err := s.repo.Quote(ctx, pair, asOf)
		if err != nil {
			return Quote{}, err
		}
		_ = s.cache.Set(ctx, asOf, q)
		return q, nil
	})
	select {
	case <-ctx.Done():
		return Quote{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Quote{}, res.Err
		}
		return res.Val.(Quote), nil
	}
}

// Upsert stores quotes and drops their cache entries.
func (s *Service) Upsert(ctx context.Context, quotes []Quote) error {
	if err := s.repo.Upsert(ctx, quotes); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, quotes)
}

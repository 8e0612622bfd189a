package rates

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

type stubRepo struct {
	mu     sync.Mutex
	quotes map[string]Quote
	calls  int
}

func newStubRepo() *stubRepo {
	return &stubRepo{quotes: make(map[string]Quote)}
}

func (r *stubRepo) Quote(ctx context.Context, pair string, asOf time.Time) (Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	q, ok := r.quotes[strings.ToUpper(pair)]
	if !ok {
		return Quote{}, shared.ErrRateNotFound
	}
	return q, nil
}

func (r *stubRepo) Upsert(ctx context.Context, quotes []Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range quotes {
		r.quotes[strings.ToUpper(q.Pair)] = q
	}
	return nil
}

func (r *stubRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestService(t *testing.T) (*Service, *stubRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newStubRepo()
	return NewService(repo, NewCache(client, time.Minute)), repo
}

func TestLookupCachesQuote(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	want := Quote{Pair: "EURUSD", AsOf: asOf, Rate: decimal.RequireFromString("1.0842")}
	require.NoError(t, repo.Upsert(ctx, []Quote{want}))

	q, err := svc.Lookup(ctx, "eurusd", asOf)
	require.NoError(t, err)
	require.True(t, q.Rate.Equal(want.Rate))
	require.Equal(t, 1, repo.callCount())

	// Second lookup for the same pair and day is served from Redis.
	q, err = svc.Lookup(ctx, "EURUSD", asOf)
	require.NoError(t, err)
	require.True(t, q.Rate.Equal(want.Rate))
	require.Equal(t, 1, repo.callCount())
}

func TestLookupMissingRate(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Lookup(context.Background(), "EURUSD", time.Now())
	require.ErrorIs(t, err, shared.ErrRateNotFound)
}

func TestUpsertInvalidatesCache(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Upsert(ctx, []Quote{{Pair: "EURUSD", AsOf: asOf, Rate: decimal.RequireFromString("1.08")}}))

	rate, err := svc.Rate(ctx, "EURUSD", asOf)
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1.08")))

	require.NoError(t, svc.Upsert(ctx, []Quote{{Pair: "EURUSD", AsOf: asOf, Rate: decimal.RequireFromString("1.09")}}))
	rate, err = svc.Rate(ctx, "EURUSD", asOf)
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("1.09")))
	require.Equal(t, 2, repo.callCount())
}

func TestConcurrentLookups(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	want := decimal.RequireFromString("1.0842")
	require.NoError(t, repo.Upsert(ctx, []Quote{{Pair: "EURUSD", AsOf: asOf, Rate: want}}))

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			rate, err := svc.Rate(ctx, "EURUSD", asOf)
			if err != nil {
				return err
			}
			require.True(t, rate.Equal(want))
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

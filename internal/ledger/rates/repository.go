package rates

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for exchange rate quotes.
type Repository interface {
	Quote(ctx context.Context, pair string, asOf time.Time) (Quote, error)
	Upsert(ctx context.Context, quotes []Quote) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Quote returns the rate observed on or before asOf for the pair.
func (r *repository) Quote(ctx context.Context, pair string, asOf time.Time) (Quote, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair == "" {
		return Quote{}, errors.New("rates: pair required")
	}
	var q Quote
	err := r.db.QueryRow(ctx, `SELECT pair, as_of_date, rate, created_at, updated_at
FROM exchange_rates WHERE pair=$1 AND as_of_date <= $2 ORDER BY as_of_date DESC LIMIT 1`, pair, asOf).
		Scan(&q.Pair, &q.AsOf, &q.Rate, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, shared.ErrRateNotFound
		}
		return Quote{}, err
	}
	return q, nil
}

// Upsert persists quotes, replacing rows for the same pair and date.
func (r *repository) Upsert(ctx context.Context, quotes []Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const query = `
INSERT INTO exchange_rates (pair, as_of_date, rate)
VALUES ($1, $2, $3)
ON CONFLICT (pair, as_of_date)
DO UPDATE SET rate = EXCLUDED.rate, updated_at = NOW()`
	for _, q := range quotes {
		pair := strings.ToUpper(strings.TrimSpace(q.Pair))
		if len(pair) != 6 {
			return shared.ErrInvalidCurrency
		}
		if !q.Rate.IsPositive() {
			return errors.New("rates: rate must be positive")
		}
		batch.Queue(query, pair, q.AsOf, q.Rate)
	}
	results := r.db.SendBatch(ctx, batch)
	for range quotes {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// IntegrityChecker scans the general ledger for drift between journals,
// ledger entries, and account balances.
type IntegrityChecker struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewIntegrityChecker builds an IntegrityChecker.
func NewIntegrityChecker(db *pgxpool.Pool, logger *slog.Logger) *IntegrityChecker {
	return &IntegrityChecker{db: db, logger: logger}
}

// Handle processes TaskGLIntegrity tasks.
func (c *IntegrityChecker) Handle(ctx context.Context, t *asynq.Task) error {
	var payload GLIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return c.Check(ctx, payload.OrgID)
}

// Check runs the three invariant scans and returns an error when any ledger
// drift is found. The scans are read-only and safe to retry.
func (c *IntegrityChecker) Check(ctx context.Context, orgID int64) error {
	anomalies := 0

	// Posted journals whose header totals disagree.
	rows, err := c.db.Query(ctx, `SELECT id, org_id, total_debit, total_credit FROM journals
WHERE status IN ('POSTED','REVERSED') AND total_debit <> total_credit AND ($1 = 0 OR org_id = $1)`, orgID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id, org int64
		var debit, credit decimal.Decimal
		if err := rows.Scan(&id, &org, &debit, &credit); err != nil {
			rows.Close()
			return err
		}
		anomalies++
		c.logger.Warn("unbalanced posted journal",
			slog.Int64("journal_id", id),
			slog.Int64("org_id", org),
			slog.String("debit", debit.String()),
			slog.String("credit", credit.String()))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Periods whose ledger entries do not net to zero.
	rows, err = c.db.Query(ctx, `SELECT org_id, period_id, SUM(debit_amount - credit_amount) AS drift
FROM ledger_entries WHERE ($1 = 0 OR org_id = $1)
GROUP BY org_id, period_id HAVING SUM(debit_amount - credit_amount) <> 0`, orgID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var org, periodID int64
		var drift decimal.Decimal
		if err := rows.Scan(&org, &periodID, &drift); err != nil {
			rows.Close()
			return err
		}
		anomalies++
		c.logger.Warn("period ledger drift",
			slog.Int64("org_id", org),
			slog.Int64("period_id", periodID),
			slog.String("drift", drift.String()))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Accounts whose running balance disagrees with their entries.
	rows, err = c.db.Query(ctx, `SELECT a.id, a.org_id, a.current_balance,
a.opening_balance + COALESCE(SUM(e.debit_amount - e.credit_amount), 0) AS derived
FROM accounts a LEFT JOIN ledger_entries e ON e.account_id = a.id
WHERE ($1 = 0 OR a.org_id = $1)
GROUP BY a.id, a.org_id, a.current_balance, a.opening_balance
HAVING a.current_balance <> a.opening_balance + COALESCE(SUM(e.debit_amount - e.credit_amount), 0)`, orgID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id, org int64
		var current, derived decimal.Decimal
		if err := rows.Scan(&id, &org, &current, &derived); err != nil {
			rows.Close()
			return err
		}
		anomalies++
		c.logger.Warn("account balance drift",
			slog.Int64("account_id", id),
			slog.Int64("org_id", org),
			slog.String("current", current.String()),
			slog.String("derived", derived.String()))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if anomalies > 0 {
		return fmt.Errorf("gl integrity: %d anomalies found", anomalies)
	}
	c.logger.Info("gl integrity check clean", slog.Int64("org_id", orgID))
	return nil
}

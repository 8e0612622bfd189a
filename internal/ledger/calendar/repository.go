package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for the fiscal calendar.
type Repository interface {
	ListFiscalYears(ctx context.Context, orgID int64) ([]FiscalYear, error)
	GetFiscalYear(ctx context.Context, orgID, id int64) (FiscalYear, error)
	GetPeriod(ctx context.Context, orgID, id int64) (Period, error)
	ListPeriods(ctx context.Context, orgID, fiscalYearID int64) ([]Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	ListFiscalYearsForUpdate(ctx context.Context, orgID int64) ([]FiscalYear, error)
	ClearCurrentFlag(ctx context.Context, orgID int64) error
	ClearDefaultFlag(ctx context.Context, orgID int64) error
	InsertFiscalYear(ctx context.Context, fy FiscalYear) (FiscalYear, error)
	GetFiscalYearForUpdate(ctx context.Context, orgID, id int64) (FiscalYear, error)
	UpdateFiscalYearStatus(ctx context.Context, id int64, status FiscalYearStatus, closedBy *int64, closedAt *time.Time) error
	InsertPeriod(ctx context.Context, p Period) (Period, error)
	GetPeriodForUpdate(ctx context.Context, orgID, id int64) (Period, error)
	ListPeriods(ctx context.Context, orgID, fiscalYearID int64) ([]Period, error)
	ListJournalStates(ctx context.Context, periodID int64) ([]JournalState, error)
	UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus, closedBy *int64, closedAt *time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const fiscalYearColumns = `id, org_id, code, name, start_date, end_date, status, is_current, is_default, closed_by, closed_at, created_at, updated_at`

const periodColumns = `id, org_id, fiscal_year_id, period_number, name, start_date, end_date, status, is_current, closed_by, closed_at, created_at, updated_at`

func scanFiscalYear(row pgx.Row) (FiscalYear, error) {
	var fy FiscalYear
	err := row.Scan(&fy.ID, &fy.OrgID, &fy.Code, &fy.Name, &fy.StartDate, &fy.EndDate, &fy.Status, &fy.IsCurrent, &fy.IsDefault, &fy.ClosedBy, &fy.ClosedAt, &fy.CreatedAt, &fy.UpdatedAt)
	return fy, err
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.OrgID, &p.FiscalYearID, &p.Number, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.IsCurrent, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) ListFiscalYears(ctx context.Context, orgID int64) ([]FiscalYear, error) {
	rows, err := r.db.Query(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE org_id=$1 ORDER BY start_date`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []FiscalYear
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, fy)
	}
	return years, rows.Err()
}

func (r *repository) GetFiscalYear(ctx context.Context, orgID, id int64) (FiscalYear, error) {
	fy, err := scanFiscalYear(r.db.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE org_id=$1 AND id=$2`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, shared.ErrFiscalYearNotFound
		}
		return FiscalYear{}, err
	}
	return fy, nil
}

func (r *repository) GetPeriod(ctx context.Context, orgID, id int64) (Period, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE org_id=$1 AND id=$2`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) ListPeriods(ctx context.Context, orgID, fiscalYearID int64) ([]Period, error) {
	return listPeriods(ctx, r.db, orgID, fiscalYearID)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listPeriods(ctx context.Context, q queryer, orgID, fiscalYearID int64) ([]Period, error) {
	rows, err := q.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE org_id=$1 AND fiscal_year_id=$2 ORDER BY period_number`, orgID, fiscalYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ListFiscalYearsForUpdate(ctx context.Context, orgID int64) ([]FiscalYear, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE org_id=$1 ORDER BY start_date FOR UPDATE`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []FiscalYear
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, fy)
	}
	return years, rows.Err()
}

func (r *txRepository) ClearCurrentFlag(ctx context.Context, orgID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_current=FALSE, updated_at=NOW() WHERE org_id=$1 AND is_current`, orgID)
	return err
}

func (r *txRepository) ClearDefaultFlag(ctx context.Context, orgID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_default=FALSE, updated_at=NOW() WHERE org_id=$1 AND is_default`, orgID)
	return err
}

func (r *txRepository) InsertFiscalYear(ctx context.Context, fy FiscalYear) (FiscalYear, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO fiscal_years (org_id, code, name, start_date, end_date, status, is_current, is_default)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		fy.OrgID, fy.Code, fy.Name, fy.StartDate, fy.EndDate, fy.Status, fy.IsCurrent, fy.IsDefault)
	if err := row.Scan(&fy.ID, &fy.CreatedAt, &fy.UpdatedAt); err != nil {
		if shared.UniqueViolation(err) {
			return FiscalYear{}, shared.ErrConflict
		}
		return FiscalYear{}, err
	}
	return fy, nil
}

func (r *txRepository) GetFiscalYearForUpdate(ctx context.Context, orgID, id int64) (FiscalYear, error) {
	fy, err := scanFiscalYear(r.tx.QueryRow(ctx, `SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, shared.ErrFiscalYearNotFound
		}
		return FiscalYear{}, err
	}
	return fy, nil
}

func (r *txRepository) UpdateFiscalYearStatus(ctx context.Context, id int64, status FiscalYearStatus, closedBy *int64, closedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET status=$2, closed_by=$3, closed_at=$4, updated_at=NOW() WHERE id=$1`, id, status, closedBy, closedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrFiscalYearNotFound
	}
	return nil
}

func (r *txRepository) InsertPeriod(ctx context.Context, p Period) (Period, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounting_periods (org_id, fiscal_year_id, period_number, name, start_date, end_date, status, is_current)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		p.OrgID, p.FiscalYearID, p.Number, p.Name, p.StartDate, p.EndDate, p.Status, p.IsCurrent)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if shared.UniqueViolation(err) {
			return Period{}, shared.ErrConflict
		}
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, orgID, id int64) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) ListPeriods(ctx context.Context, orgID, fiscalYearID int64) ([]Period, error) {
	return listPeriods(ctx, r.tx, orgID, fiscalYearID)
}

func (r *txRepository) ListJournalStates(ctx context.Context, periodID int64) ([]JournalState, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, status, total_debit, total_credit FROM journals WHERE period_id=$1`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var states []JournalState
	for rows.Next() {
		var js JournalState
		if err := rows.Scan(&js.ID, &js.Status, &js.TotalDebit, &js.TotalCredit); err != nil {
			return nil, err
		}
		states = append(states, js)
	}
	return states, rows.Err()
}

func (r *txRepository) UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus, closedBy *int64, closedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_periods SET status=$2, closed_by=$3, closed_at=$4, updated_at=NOW() WHERE id=$1`, id, status, closedBy, closedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

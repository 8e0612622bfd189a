package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/calendar"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	List(ctx context.Context, orgID int64) ([]Journal, error)
	Get(ctx context.Context, orgID, id int64) (Journal, []Line, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction. Posting
// touches periods, journal types, and accounts; those reads happen here so
// the row locks live in the posting transaction.
type TxRepository interface {
	GetJournalForUpdate(ctx context.Context, orgID, id int64) (Journal, []Line, error)
	GetJournalTypeForUpdate(ctx context.Context, orgID, id int64) (JournalType, error)
	BumpJournalTypeCounter(ctx context.Context, id, next int64) error
	GetPeriodForUpdate(ctx context.Context, orgID, id int64) (calendar.Period, error)
	// GetAccountsForUpdate locks account rows in ascending id order; every
	// call site acquires account locks through this method so concurrent
	// postings cannot deadlock on each other.
	GetAccountsForUpdate(ctx context.Context, orgID int64, ids []int64) (map[int64]accounts.Account, error)
	UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	InsertJournal(ctx context.Context, j Journal) (Journal, error)
	InsertLines(ctx context.Context, journalID int64, lines []Line) ([]Line, error)
	InsertLedgerEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error)
	MarkPosted(ctx context.Context, journalID int64, number string, postedBy int64, postedAt time.Time) error
	MarkReversed(ctx context.Context, journalID int64) error
	UpdateStatus(ctx context.Context, journalID int64, from, to Status) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const journalColumns = `id, org_id, journal_number, journal_type_id, period_id, journal_date, reference, description, currency_code, exchange_rate, total_debit, total_credit, status, source_module, source_id, reversal_of_id, posted_by, posted_at, created_at, updated_at`

const lineColumns = `id, journal_id, line_number, account_id, debit_amount, credit_amount, currency_code, exchange_rate, functional_debit_amount, functional_credit_amount, department_id, project_id, cost_center_id, memo, created_at, updated_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.OrgID, &j.Number, &j.JournalTypeID, &j.PeriodID, &j.Date, &j.Reference, &j.Description, &j.Currency, &j.ExchangeRate, &j.TotalDebit, &j.TotalCredit, &j.Status, &j.SourceModule, &j.SourceID, &j.ReversalOfID, &j.PostedBy, &j.PostedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.JournalID, &l.LineNumber, &l.AccountID, &l.Debit, &l.Credit, &l.Currency, &l.ExchangeRate, &l.FunctionalDebit, &l.FunctionalCredit, &l.DepartmentID, &l.ProjectID, &l.CostCenterID, &l.Memo, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) List(ctx context.Context, orgID int64) ([]Journal, error) {
	rows, err := r.db.Query(ctx, `SELECT `+journalColumns+` FROM journals WHERE org_id=$1 ORDER BY id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var journals []Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Journal, []Line, error) {
	j, err := scanJournal(r.db.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE org_id=$1 AND id=$2`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, nil, shared.ErrJournalNotFound
		}
		return Journal{}, nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines WHERE journal_id=$1 ORDER BY line_number`, id)
	if err != nil {
		return Journal{}, nil, err
	}
	lines, err := scanLines(rows)
	if err != nil {
		return Journal{}, nil, err
	}
	return j, lines, nil
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

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, orgID, id int64) (Journal, []Line, error) {
	j, err := scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, nil, shared.ErrJournalNotFound
		}
		return Journal{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM journal_lines WHERE journal_id=$1 ORDER BY line_number`, id)
	if err != nil {
		return Journal{}, nil, err
	}
	lines, err := scanLines(rows)
	if err != nil {
		return Journal{}, nil, err
	}
	return j, lines, nil
}

func (r *txRepository) GetJournalTypeForUpdate(ctx context.Context, orgID, id int64) (JournalType, error) {
	var jt JournalType
	err := r.tx.QueryRow(ctx, `SELECT id, org_id, code, name, auto_numbering_prefix, auto_numbering_suffix, auto_numbering_next, requires_approval, created_at, updated_at
FROM journal_types WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id).
		Scan(&jt.ID, &jt.OrgID, &jt.Code, &jt.Name, &jt.AutoNumberingPrefix, &jt.AutoNumberingSuffix, &jt.AutoNumberingNext, &jt.RequiresApproval, &jt.CreatedAt, &jt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalType{}, shared.ErrJournalTypeNotFound
		}
		return JournalType{}, err
	}
	return jt, nil
}

func (r *txRepository) BumpJournalTypeCounter(ctx context.Context, id, next int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_types SET auto_numbering_next=$2, updated_at=NOW() WHERE id=$1`, id, next)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalTypeNotFound
	}
	return nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, orgID, id int64) (calendar.Period, error) {
	var p calendar.Period
	err := r.tx.QueryRow(ctx, `SELECT id, org_id, fiscal_year_id, period_number, name, start_date, end_date, status, is_current, closed_by, closed_at, created_at, updated_at
FROM accounting_periods WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id).
		Scan(&p.ID, &p.OrgID, &p.FiscalYearID, &p.Number, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.IsCurrent, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Period{}, shared.ErrPeriodNotFound
		}
		return calendar.Period{}, err
	}
	return p, nil
}

func (r *txRepository) GetAccountsForUpdate(ctx context.Context, orgID int64, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, org_id, parent_id, account_type_id, account_code, name, tree_path, account_level, currency_code, opening_balance, current_balance, require_department, require_project, require_cost_center, is_active, created_at, updated_at
FROM accounts WHERE org_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, orgID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.OrgID, &a.ParentID, &a.AccountTypeID, &a.Code, &a.Name, &a.TreePath, &a.Level, &a.Currency, &a.OpeningBalance, &a.CurrentBalance, &a.RequireDepartment, &a.RequireProject, &a.RequireCostCenter, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, shared.ErrAccountNotFound
	}
	return out, nil
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, accountID, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) InsertJournal(ctx context.Context, j Journal) (Journal, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journals (org_id, journal_number, journal_type_id, period_id, journal_date, reference, description, currency_code, exchange_rate, total_debit, total_credit, status, source_module, source_id, reversal_of_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id, created_at, updated_at`,
		j.OrgID, j.Number, j.JournalTypeID, j.PeriodID, j.Date, j.Reference, j.Description, j.Currency, j.ExchangeRate, j.TotalDebit, j.TotalCredit, j.Status, j.SourceModule, j.SourceID, j.ReversalOfID)
	if err := row.Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if shared.UniqueViolation(err) {
			return Journal{}, shared.ErrConflict
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *txRepository) InsertLines(ctx context.Context, journalID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		line.JournalID = journalID
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, line_number, account_id, debit_amount, credit_amount, currency_code, exchange_rate, functional_debit_amount, functional_credit_amount, department_id, project_id, cost_center_id, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id, created_at, updated_at`,
			line.JournalID, line.LineNumber, line.AccountID, line.Debit, line.Credit, line.Currency, line.ExchangeRate, line.FunctionalDebit, line.FunctionalCredit, line.DepartmentID, line.ProjectID, line.CostCenterID, line.Memo).
			Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (org_id, account_id, journal_id, journal_line_id, period_id, entry_date, debit_amount, credit_amount, balance_after, currency_code, exchange_rate, functional_debit_amount, functional_credit_amount, department_id, project_id, cost_center_id, description, source_module)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18) RETURNING id, created_at`,
		e.OrgID, e.AccountID, e.JournalID, e.JournalLineID, e.PeriodID, e.Date, e.Debit, e.Credit, e.BalanceAfter, e.Currency, e.ExchangeRate, e.FunctionalDebit, e.FunctionalCredit, e.DepartmentID, e.ProjectID, e.CostCenterID, e.Description, e.SourceModule).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return LedgerEntry{}, err
	}
	return e, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, journalID int64, number string, postedBy int64, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status=$2, journal_number=$3, posted_by=$4, posted_at=$5, updated_at=NOW() WHERE id=$1 AND status IN ('DRAFT','APPROVED')`,
		journalID, StatusPosted, number, postedBy, postedAt)
	if err != nil {
		if shared.UniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrDuplicatePost
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, journalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status=$2, updated_at=NOW() WHERE id=$1 AND status=$3`, journalID, StatusReversed, StatusPosted)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, journalID int64, from, to Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journals SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`, journalID, from, to)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

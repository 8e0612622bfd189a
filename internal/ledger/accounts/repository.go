package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	List(ctx context.Context, orgID int64) ([]Account, error)
	Get(ctx context.Context, orgID, id int64) (Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	// AcquireAllocationLock blocks until the advisory lock for the given key
	// is held; the lock releases automatically at commit or rollback.
	AcquireAllocationLock(ctx context.Context, key int64) error
	Get(ctx context.Context, orgID, id int64) (Account, error)
	GetAccountType(ctx context.Context, id int64) (AccountType, error)
	ListRootCodes(ctx context.Context, orgID int64, lo, hi int) ([]int, error)
	ListChildCodes(ctx context.Context, orgID, parentID int64) ([]string, error)
	Insert(ctx context.Context, a Account) (Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, org_id, parent_id, account_type_id, account_code, name, tree_path, account_level, currency_code, opening_balance, current_balance, require_department, require_project, require_cost_center, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OrgID, &a.ParentID, &a.AccountTypeID, &a.Code, &a.Name, &a.TreePath, &a.Level, &a.Currency, &a.OpeningBalance, &a.CurrentBalance, &a.RequireDepartment, &a.RequireProject, &a.RequireCostCenter, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) List(ctx context.Context, orgID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 ORDER BY account_code`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND id=$2`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
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

func (r *txRepository) AcquireAllocationLock(ctx context.Context, key int64) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}

func (r *txRepository) Get(ctx context.Context, orgID, id int64) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND id=$2`, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) GetAccountType(ctx context.Context, id int64) (AccountType, error) {
	var at AccountType
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, nature, root_code_prefix, root_code_step, display_order, created_at, updated_at FROM account_types WHERE id=$1`, id).
		Scan(&at.ID, &at.Code, &at.Name, &at.Nature, &at.RootCodePrefix, &at.RootCodeStep, &at.DisplayOrder, &at.CreatedAt, &at.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountType{}, errors.New("accounts: account type not found")
		}
		return AccountType{}, err
	}
	return at, nil
}

// ListRootCodes returns numeric top-level codes inside the [lo,hi] band.
// Non-numeric codes cannot occur at the top level; the allocator writes them.
func (r *txRepository) ListRootCodes(ctx context.Context, orgID int64, lo, hi int) ([]int, error) {
	rows, err := r.tx.Query(ctx, `SELECT account_code::int FROM accounts WHERE org_id=$1 AND parent_id IS NULL AND account_code ~ '^[0-9]+$' AND account_code::int BETWEEN $2 AND $3`, orgID, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *txRepository) ListChildCodes(ctx context.Context, orgID, parentID int64) ([]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT account_code FROM accounts WHERE org_id=$1 AND parent_id=$2`, orgID, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *txRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (org_id, parent_id, account_type_id, account_code, name, tree_path, account_level, currency_code, opening_balance, current_balance, require_department, require_project, require_cost_center, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id, created_at, updated_at`,
		a.OrgID, a.ParentID, a.AccountTypeID, a.Code, a.Name, a.TreePath, a.Level, a.Currency, a.OpeningBalance, a.CurrentBalance, a.RequireDepartment, a.RequireProject, a.RequireCostCenter, a.IsActive)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if shared.UniqueViolation(err) {
			return Account{}, shared.ErrConflict
		}
		return Account{}, err
	}
	return a, nil
}

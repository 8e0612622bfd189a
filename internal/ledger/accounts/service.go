package accounts

import (
	"context"
	"fmt"
	"time"

	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records state changes in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service manages chart-of-accounts creation and lookup.
type Service struct {
	repo      Repository
	allocator *Allocator
	audit     AuditPort
	now       func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, allocator *Allocator, audit AuditPort) *Service {
	return &Service{repo: repo, allocator: allocator, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the chart of accounts for an org ordered by code.
func (s *Service) List(ctx context.Context, orgID int64) ([]Account, error) {
	return s.repo.List(ctx, orgID)
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, orgID, id int64) (Account, error) {
	return s.repo.Get(ctx, orgID, id)
}

// Create allocates a code and inserts the account in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		alloc, err := s.allocator.Allocate(ctx, tx, in.OrgID, in.ParentID, in.AccountTypeID)
		if err != nil {
			return err
		}
		account, err = tx.Insert(ctx, Account{
			OrgID:             in.OrgID,
			ParentID:          in.ParentID,
			AccountTypeID:     in.AccountTypeID,
			Code:              alloc.Code,
			Name:              in.Name,
			TreePath:          alloc.TreePath,
			Level:             alloc.Level,
			Currency:          in.Currency,
			OpeningBalance:    in.OpeningBalance,
			CurrentBalance:    in.OpeningBalance,
			RequireDepartment: in.RequireDepartment,
			RequireProject:    in.RequireProject,
			RequireCostCenter: in.RequireCostCenter,
			IsActive:          true,
		})
		return err
	})
	if err != nil {
		return Account{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			OrgID:    in.OrgID,
			ActorID:  in.ActorID,
			Action:   "account.create",
			Entity:   "account",
			EntityID: fmt.Sprintf("%d", account.ID),
			Meta: map[string]any{
				"code":      account.Code,
				"tree_path": account.TreePath,
			},
			At: s.now(),
		})
	}
	return account, nil
}

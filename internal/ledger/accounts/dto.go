package accounts

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// CreateInput groups fields required to create a chart-of-accounts node.
// The account code is never supplied by the caller; the allocator assigns it.
type CreateInput struct {
	OrgID             int64
	ActorID           int64
	ParentID          *int64
	AccountTypeID     int64
	Name              string
	Currency          string
	OpeningBalance    decimal.Decimal
	RequireDepartment bool
	RequireProject    bool
	RequireCostCenter bool
}

// Validate ensures the create input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.OrgID == 0 {
		return errors.New("accounts: org required")
	}
	if in.AccountTypeID == 0 {
		return errors.New("accounts: account type required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("accounts: name required")
	}
	if in.Currency != "" {
		if _, err := currency.ParseISO(in.Currency); err != nil {
			return shared.ErrInvalidCurrency
		}
	}
	return nil
}

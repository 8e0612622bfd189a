package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// DraftLineInput describes one journal line for draft creation.
type DraftLineInput struct {
	AccountID    int64
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	DepartmentID *int64
	ProjectID    *int64
	CostCenterID *int64
	Memo         string
}

// CreateDraftInput groups fields required to create a draft journal.
type CreateDraftInput struct {
	OrgID         int64
	ActorID       int64
	JournalTypeID int64
	PeriodID      int64
	Date          time.Time
	Reference     string
	Description   string
	Currency      string
	ExchangeRate  decimal.Decimal
	SourceModule  string
	SourceID      uuid.UUID
	Lines         []DraftLineInput
}

// Validate ensures the draft input meets minimum criteria and balances.
func (in CreateDraftInput) Validate() error {
	if in.OrgID == 0 {
		return errors.New("journals: org required")
	}
	if in.JournalTypeID == 0 {
		return errors.New("journals: journal type required")
	}
	if in.PeriodID == 0 {
		return errors.New("journals: period required")
	}
	if in.Date.IsZero() {
		return errors.New("journals: date required")
	}
	if in.Currency != "" {
		if _, err := currency.ParseISO(in.Currency); err != nil {
			return shared.ErrInvalidCurrency
		}
	}
	if in.ExchangeRate.IsNegative() {
		return errors.New("journals: exchange rate cannot be negative")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journals: line %d missing account", idx+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journals: line %d: %w", idx+1, shared.ErrInvalidLine)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("journals: line %d: %w", idx+1, shared.ErrInvalidLine)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return shared.ErrUnbalanced
	}
	return nil
}

// PostInput identifies the draft journal to post.
type PostInput struct {
	OrgID     int64
	JournalID int64
	ActorID   int64
}

// ReverseInput wraps parameters for building a reversal draft.
type ReverseInput struct {
	OrgID       int64
	JournalID   int64
	ActorID     int64
	Date        *time.Time
	Description string
}

// ReviewInput wraps parameters for approving or rejecting a draft.
type ReviewInput struct {
	OrgID     int64
	JournalID int64
	ActorID   int64
	Comment   string
}

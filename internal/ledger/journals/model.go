package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusReversed Status = "REVERSED"
)

// JournalType owns the numbering sequence consumed at posting time.
type JournalType struct {
	ID                  int64
	OrgID               int64
	Code                string
	Name                string
	AutoNumberingPrefix string
	AutoNumberingSuffix string
	AutoNumberingNext   int64
	RequiresApproval    bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Journal is a double-entry transaction header. Number is assigned exactly
// once, at posting time; drafts carry an empty number.
type Journal struct {
	ID            int64
	OrgID         int64
	Number        string
	JournalTypeID int64
	PeriodID      int64
	Date          time.Time
	Reference     string
	Description   string
	Currency      string
	ExchangeRate  decimal.Decimal
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
	Status        Status
	SourceModule  string
	SourceID      uuid.UUID
	ReversalOfID  *int64
	PostedBy      *int64
	PostedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []Line
}

// Line carries a debit or credit amount for one account. Exactly one of
// Debit and Credit is positive.
type Line struct {
	ID               int64
	JournalID        int64
	LineNumber       int
	AccountID        int64
	Debit            decimal.Decimal
	Credit           decimal.Decimal
	Currency         string
	ExchangeRate     decimal.Decimal
	FunctionalDebit  decimal.Decimal
	FunctionalCredit decimal.Decimal
	DepartmentID     *int64
	ProjectID        *int64
	CostCenterID     *int64
	Memo             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LedgerEntry is one immutable audit fact per posted journal line. Rows are
// append-only; nothing in this repo updates or deletes them.
type LedgerEntry struct {
	ID               int64
	OrgID            int64
	AccountID        int64
	JournalID        int64
	JournalLineID    int64
	PeriodID         int64
	Date             time.Time
	Debit            decimal.Decimal
	Credit           decimal.Decimal
	BalanceAfter     decimal.Decimal
	Currency         string
	ExchangeRate     decimal.Decimal
	FunctionalDebit  decimal.Decimal
	FunctionalCredit decimal.Decimal
	DepartmentID     *int64
	ProjectID        *int64
	CostCenterID     *int64
	Description      string
	SourceModule     string
	CreatedAt        time.Time
}

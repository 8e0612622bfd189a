package calendar

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiscalYearStatus enumerates fiscal year lifecycle values.
type FiscalYearStatus string

const (
	FiscalYearStatusOpen     FiscalYearStatus = "OPEN"
	FiscalYearStatusClosed   FiscalYearStatus = "CLOSED"
	FiscalYearStatusArchived FiscalYearStatus = "ARCHIVED"
)

// PeriodStatus enumerates accounting period lifecycle values.
type PeriodStatus string

const (
	PeriodStatusOpen PeriodStatus = "OPEN"
	// PeriodStatusClosed is terminal for ordinary postings.
	PeriodStatusClosed PeriodStatus = "CLOSED"
	// PeriodStatusAdjustment stays writable for post-close corrections.
	PeriodStatusAdjustment PeriodStatus = "ADJUSTMENT"
	// PeriodStatusArchived is terminal and read-only.
	PeriodStatusArchived PeriodStatus = "ARCHIVED"
)

// FiscalYear represents a reporting year. Adjacent years of one org must be
// date-contiguous and never overlap.
type FiscalYear struct {
	ID        int64
	OrgID     int64
	Code      string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    FiscalYearStatus
	IsCurrent bool
	IsDefault bool
	ClosedBy  *int64
	ClosedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Period represents one numbered window inside a fiscal year.
type Period struct {
	ID           int64
	OrgID        int64
	FiscalYearID int64
	Number       int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Status       PeriodStatus
	IsCurrent    bool
	ClosedBy     *int64
	ClosedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JournalState is the slice of a journal the close check needs.
type JournalState struct {
	ID          int64
	Status      string
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Period numbers run 1..16: twelve months plus up to four adjustment slots.
const (
	MinPeriodNumber = 1
	MaxPeriodNumber = 16
)

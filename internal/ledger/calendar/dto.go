package calendar

import (
	"errors"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// CreateFiscalYearInput groups fields required to create a fiscal year.
type CreateFiscalYearInput struct {
	OrgID     int64
	ActorID   int64
	Code      string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsCurrent bool
	IsDefault bool
	// GenerateMonthlyPeriods seeds one period per calendar month of the year.
	GenerateMonthlyPeriods bool
}

// Validate ensures the fiscal year input is coherent.
func (in CreateFiscalYearInput) Validate() error {
	if in.OrgID == 0 {
		return errors.New("calendar: org required")
	}
	if strings.TrimSpace(in.Code) == "" {
		return errors.New("calendar: code required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("calendar: start and end date required")
	}
	if !in.StartDate.Before(in.EndDate) {
		return shared.ErrInvalidDateRange
	}
	return nil
}

// CreatePeriodInput groups fields required to create an accounting period.
type CreatePeriodInput struct {
	OrgID        int64
	ActorID      int64
	FiscalYearID int64
	Number       int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	IsAdjustment bool
	IsCurrent    bool
}

// Validate ensures the period input is coherent.
func (in CreatePeriodInput) Validate() error {
	if in.OrgID == 0 {
		return errors.New("calendar: org required")
	}
	if in.FiscalYearID == 0 {
		return errors.New("calendar: fiscal year required")
	}
	if in.Number < MinPeriodNumber || in.Number > MaxPeriodNumber {
		return errors.New("calendar: period number out of range")
	}
	if !in.StartDate.Before(in.EndDate) {
		return shared.ErrInvalidDateRange
	}
	return nil
}

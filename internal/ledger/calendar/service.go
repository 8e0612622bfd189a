package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records state changes in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service orchestrates the fiscal calendar lifecycle.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListFiscalYears returns the org's fiscal years ordered by start date.
func (s *Service) ListFiscalYears(ctx context.Context, orgID int64) ([]FiscalYear, error) {
	return s.repo.ListFiscalYears(ctx, orgID)
}

// GetPeriod returns a single accounting period.
func (s *Service) GetPeriod(ctx context.Context, orgID, id int64) (Period, error) {
	return s.repo.GetPeriod(ctx, orgID, id)
}

// ListPeriods returns the periods of a fiscal year ordered by number.
func (s *Service) ListPeriods(ctx context.Context, orgID, fiscalYearID int64) ([]Period, error) {
	return s.repo.ListPeriods(ctx, orgID, fiscalYearID)
}

// CreateFiscalYear validates overlap and contiguity against the org's
// existing years, then inserts the year (and optionally its monthly
// periods) in one transaction. Requesting is_current or is_default clears
// the flag on every other year of the org first.
func (s *Service) CreateFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, error) {
	if err := in.Validate(); err != nil {
		return FiscalYear{}, err
	}
	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.ListFiscalYearsForUpdate(ctx, in.OrgID)
		if err != nil {
			return err
		}
		if err := checkYearBoundaries(existing, in.StartDate, in.EndDate); err != nil {
			return err
		}
		if in.IsCurrent {
			if err := tx.ClearCurrentFlag(ctx, in.OrgID); err != nil {
				return err
			}
		}
		if in.IsDefault {
			if err := tx.ClearDefaultFlag(ctx, in.OrgID); err != nil {
				return err
			}
		}
		year, err = tx.InsertFiscalYear(ctx, FiscalYear{
			OrgID:     in.OrgID,
			Code:      in.Code,
			Name:      in.Name,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
			Status:    FiscalYearStatusOpen,
			IsCurrent: in.IsCurrent,
			IsDefault: in.IsDefault,
		})
		if err != nil {
			return err
		}
		if in.GenerateMonthlyPeriods {
			return s.insertMonthlyPeriods(ctx, tx, year)
		}
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, in.OrgID, in.ActorID, "fiscal_year.create", "fiscal_year", year.ID, map[string]any{"code": year.Code})
	return year, nil
}

// checkYearBoundaries rejects ranges that overlap an existing year or leave
// a gap against the adjacent year on either side.
func checkYearBoundaries(existing []FiscalYear, start, end time.Time) error {
	var prev, next *FiscalYear
	for i := range existing {
		y := existing[i]
		if !start.After(y.EndDate) && !end.Before(y.StartDate) {
			return shared.ErrPeriodOverlap
		}
		if y.EndDate.Before(start) && (prev == nil || y.EndDate.After(prev.EndDate)) {
			prev = &existing[i]
		}
		if y.StartDate.After(end) && (next == nil || y.StartDate.Before(next.StartDate)) {
			next = &existing[i]
		}
	}
	if prev != nil && !prev.EndDate.AddDate(0, 0, 1).Equal(start) {
		return shared.ErrNotContiguous
	}
	if next != nil && !end.AddDate(0, 0, 1).Equal(next.StartDate) {
		return shared.ErrNotContiguous
	}
	return nil
}

// insertMonthlyPeriods seeds one period per calendar month bounded by the
// fiscal year's end date.
func (s *Service) insertMonthlyPeriods(ctx context.Context, tx TxRepository, year FiscalYear) error {
	current := year.StartDate
	number := MinPeriodNumber
	for current.Before(year.EndDate) || current.Equal(year.EndDate) {
		if number > MaxPeriodNumber {
			break
		}
		monthEnd := time.Date(current.Year(), current.Month(), 1, 0, 0, 0, 0, current.Location()).
			AddDate(0, 1, -1)
		if monthEnd.After(year.EndDate) {
			monthEnd = year.EndDate
		}
		_, err := tx.InsertPeriod(ctx, Period{
			OrgID:        year.OrgID,
			FiscalYearID: year.ID,
			Number:       number,
			Name:         current.Format("January 2006"),
			StartDate:    current,
			EndDate:      monthEnd,
			Status:       PeriodStatusOpen,
		})
		if err != nil {
			return err
		}
		current = monthEnd.AddDate(0, 0, 1)
		number++
	}
	return nil
}

// CreatePeriod inserts a numbered period after validating its bounds. The
// (fiscal_year, period_number) unique constraint backstops concurrent
// creations; duplicates surface as ErrConflict.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetFiscalYearForUpdate(ctx, in.OrgID, in.FiscalYearID)
		if err != nil {
			return err
		}
		if year.Status != FiscalYearStatusOpen {
			return shared.ErrInvalidStatus
		}
		if in.StartDate.Before(year.StartDate) || in.EndDate.After(year.EndDate) {
			return shared.ErrInvalidDateRange
		}
		siblings, err := tx.ListPeriods(ctx, in.OrgID, in.FiscalYearID)
		if err != nil {
			return err
		}
		for _, p := range siblings {
			if p.Number == in.Number {
				return shared.ErrConflict
			}
		}
		status := PeriodStatusOpen
		if in.IsAdjustment {
			status = PeriodStatusAdjustment
		}
		period, err = tx.InsertPeriod(ctx, Period{
			OrgID:        in.OrgID,
			FiscalYearID: in.FiscalYearID,
			Number:       in.Number,
			Name:         in.Name,
			StartDate:    in.StartDate,
			EndDate:      in.EndDate,
			Status:       status,
			IsCurrent:    in.IsCurrent,
		})
		return err
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, in.OrgID, in.ActorID, "period.create", "accounting_period", period.ID, map[string]any{"number": period.Number})
	return period, nil
}

// ClosePeriod transitions a period to CLOSED once every journal in it is
// posted and balanced. On any failure the period is left untouched.
func (s *Service) ClosePeriod(ctx context.Context, orgID, periodID, actorID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, orgID, periodID)
		if err != nil {
			return err
		}
		if p.Status != PeriodStatusOpen && p.Status != PeriodStatusAdjustment {
			return shared.ErrInvalidStatus
		}
		states, err := tx.ListJournalStates(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, js := range states {
			// Reversed journals were posted once; only journals that never
			// reached the ledger block the close.
			if js.Status != "POSTED" && js.Status != "REVERSED" {
				return shared.ErrOpenJournalsExist
			}
			if !js.TotalDebit.Equal(js.TotalCredit) {
				return shared.ErrUnbalancedJournal
			}
		}
		closedAt := s.now()
		if err := tx.UpdatePeriodStatus(ctx, p.ID, PeriodStatusClosed, &actorID, &closedAt); err != nil {
			return err
		}
		p.Status = PeriodStatusClosed
		p.ClosedBy = &actorID
		p.ClosedAt = &closedAt
		period = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, orgID, actorID, "period.close", "accounting_period", period.ID, nil)
	return period, nil
}

// MarkAdjustment reopens a period for post-close corrections.
func (s *Service) MarkAdjustment(ctx context.Context, orgID, periodID, actorID int64) (Period, error) {
	return s.transitionPeriod(ctx, orgID, periodID, actorID, PeriodStatusAdjustment, "period.adjust",
		PeriodStatusOpen)
}

// ArchivePeriod makes a closed or adjustment period permanently read-only.
func (s *Service) ArchivePeriod(ctx context.Context, orgID, periodID, actorID int64) (Period, error) {
	return s.transitionPeriod(ctx, orgID, periodID, actorID, PeriodStatusArchived, "period.archive",
		PeriodStatusClosed, PeriodStatusAdjustment)
}

func (s *Service) transitionPeriod(ctx context.Context, orgID, periodID, actorID int64, target PeriodStatus, action string, allowed ...PeriodStatus) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPeriodForUpdate(ctx, orgID, periodID)
		if err != nil {
			return err
		}
		ok := false
		for _, st := range allowed {
			if p.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return shared.ErrInvalidStatus
		}
		if err := tx.UpdatePeriodStatus(ctx, p.ID, target, p.ClosedBy, p.ClosedAt); err != nil {
			return err
		}
		p.Status = target
		period = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.record(ctx, orgID, actorID, action, "accounting_period", period.ID, nil)
	return period, nil
}

// CloseFiscalYear closes a fiscal year once every period in it is closed or
// archived.
func (s *Service) CloseFiscalYear(ctx context.Context, orgID, fiscalYearID, actorID int64) (FiscalYear, error) {
	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fy, err := tx.GetFiscalYearForUpdate(ctx, orgID, fiscalYearID)
		if err != nil {
			return err
		}
		if fy.Status != FiscalYearStatusOpen {
			return shared.ErrInvalidStatus
		}
		periods, err := tx.ListPeriods(ctx, orgID, fiscalYearID)
		if err != nil {
			return err
		}
		for _, p := range periods {
			if p.Status != PeriodStatusClosed && p.Status != PeriodStatusArchived {
				return shared.ErrOpenJournalsExist
			}
		}
		closedAt := s.now()
		if err := tx.UpdateFiscalYearStatus(ctx, fy.ID, FiscalYearStatusClosed, &actorID, &closedAt); err != nil {
			return err
		}
		fy.Status = FiscalYearStatusClosed
		fy.ClosedBy = &actorID
		fy.ClosedAt = &closedAt
		year = fy
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, orgID, actorID, "fiscal_year.close", "fiscal_year", year.ID, nil)
	return year, nil
}

func (s *Service) record(ctx context.Context, orgID, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}

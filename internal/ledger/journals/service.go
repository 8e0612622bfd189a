package journals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/calendar"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// AuditPort records state changes in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service owns the journal lifecycle: draft creation, review, posting, and
// reversal.
type Service struct {
	repo  Repository
	seq   *Sequencer
	audit AuditPort
	now   func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, seq *Sequencer, audit AuditPort) *Service {
	return &Service{repo: repo, seq: seq, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns journal headers for an org, newest first.
func (s *Service) List(ctx context.Context, orgID int64) ([]Journal, error) {
	return s.repo.List(ctx, orgID)
}

// Get returns one journal with its lines.
func (s *Service) Get(ctx context.Context, orgID, id int64) (Journal, error) {
	j, lines, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return Journal{}, err
	}
	j.Lines = lines
	return j, nil
}

// CreateDraft validates and stores a balanced draft journal. Drafts carry no
// number; numbering happens at posting time.
func (s *Service) CreateDraft(ctx context.Context, in CreateDraftInput) (Journal, error) {
	if err := in.Validate(); err != nil {
		return Journal{}, err
	}
	rate := in.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, in.OrgID, in.PeriodID)
		if err != nil {
			return err
		}
		if err := checkPeriodWritable(period, in.Date); err != nil {
			return err
		}
		header, lines := buildDraft(in, rate)
		journal, err = tx.InsertJournal(ctx, header)
		if err != nil {
			return err
		}
		journal.Lines, err = tx.InsertLines(ctx, journal.ID, lines)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, in.OrgID, in.ActorID, "journal.draft", journal.ID, map[string]any{
		"total_debit": journal.TotalDebit.String(),
		"lines":       len(journal.Lines),
	})
	return journal, nil
}

func buildDraft(in CreateDraftInput, rate decimal.Decimal) (Journal, []Line) {
	var totalDebit, totalCredit decimal.Decimal
	lines := make([]Line, 0, len(in.Lines))
	for idx, l := range in.Lines {
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
		lines = append(lines, Line{
			LineNumber:       idx + 1,
			AccountID:        l.AccountID,
			Debit:            l.Debit,
			Credit:           l.Credit,
			Currency:         in.Currency,
			ExchangeRate:     rate,
			FunctionalDebit:  l.Debit.Mul(rate),
			FunctionalCredit: l.Credit.Mul(rate),
			DepartmentID:     l.DepartmentID,
			ProjectID:        l.ProjectID,
			CostCenterID:     l.CostCenterID,
			Memo:             l.Memo,
		})
	}
	header := Journal{
		OrgID:         in.OrgID,
		JournalTypeID: in.JournalTypeID,
		PeriodID:      in.PeriodID,
		Date:          in.Date,
		Reference:     in.Reference,
		Description:   in.Description,
		Currency:      in.Currency,
		ExchangeRate:  rate,
		TotalDebit:    totalDebit,
		TotalCredit:   totalCredit,
		Status:        StatusDraft,
		SourceModule:  in.SourceModule,
		SourceID:      in.SourceID,
	}
	return header, lines
}

// Approve moves a draft into APPROVED so types with requires_approval can
// post it.
func (s *Service) Approve(ctx context.Context, in ReviewInput) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		j, _, err := tx.GetJournalForUpdate(ctx, in.OrgID, in.JournalID)
		if err != nil {
			return err
		}
		if j.Status != StatusDraft {
			return shared.ErrInvalidStatus
		}
		return tx.UpdateStatus(ctx, j.ID, StatusDraft, StatusApproved)
	})
	if err != nil {
		return err
	}
	s.record(ctx, in.OrgID, in.ActorID, "journal.approve", in.JournalID, map[string]any{"comment": in.Comment})
	return nil
}

// Reject moves a draft into REJECTED. Rejected journals cannot be posted.
func (s *Service) Reject(ctx context.Context, in ReviewInput) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		j, _, err := tx.GetJournalForUpdate(ctx, in.OrgID, in.JournalID)
		if err != nil {
			return err
		}
		if j.Status != StatusDraft {
			return shared.ErrInvalidStatus
		}
		return tx.UpdateStatus(ctx, j.ID, StatusDraft, StatusRejected)
	})
	if err != nil {
		return err
	}
	s.record(ctx, in.OrgID, in.ActorID, "journal.reject", in.JournalID, map[string]any{"comment": in.Comment})
	return nil
}

// Post atomically validates a draft, assigns its number, writes one ledger
// entry per line, updates account running balances, and flips the status to
// POSTED. Any failure rolls the whole transaction back, so a failed post
// never burns a number or moves a balance.
//
// Row locks are taken in a fixed order (journal, period, journal type,
// accounts ascending by id) so concurrent posts serialize without
// deadlocking.
func (s *Service) Post(ctx context.Context, in PostInput) (Journal, error) {
	var posted Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		j, lines, err := tx.GetJournalForUpdate(ctx, in.OrgID, in.JournalID)
		if err != nil {
			return err
		}
		switch j.Status {
		case StatusPosted, StatusReversed:
			return shared.ErrDuplicatePost
		case StatusRejected:
			return shared.ErrInvalidStatus
		}
		if err := validatePostable(j, lines); err != nil {
			return err
		}

		period, err := tx.GetPeriodForUpdate(ctx, in.OrgID, j.PeriodID)
		if err != nil {
			return err
		}
		if err := checkPeriodWritable(period, j.Date); err != nil {
			return err
		}

		jt, err := tx.GetJournalTypeForUpdate(ctx, in.OrgID, j.JournalTypeID)
		if err != nil {
			return err
		}
		if jt.RequiresApproval && j.Status != StatusApproved {
			return shared.ErrInvalidStatus
		}

		accts, err := tx.GetAccountsForUpdate(ctx, in.OrgID, accountIDs(lines))
		if err != nil {
			return err
		}
		for _, l := range lines {
			acct := accts[l.AccountID]
			if !acct.IsActive {
				return fmt.Errorf("journals: line %d account %s inactive: %w", l.LineNumber, acct.Code, shared.ErrInvalidLine)
			}
			if acct.RequireDepartment && l.DepartmentID == nil {
				return fmt.Errorf("journals: line %d account %s: %w", l.LineNumber, acct.Code, shared.ErrMissingDimension)
			}
			if acct.RequireProject && l.ProjectID == nil {
				return fmt.Errorf("journals: line %d account %s: %w", l.LineNumber, acct.Code, shared.ErrMissingDimension)
			}
			if acct.RequireCostCenter && l.CostCenterID == nil {
				return fmt.Errorf("journals: line %d account %s: %w", l.LineNumber, acct.Code, shared.ErrMissingDimension)
			}
		}

		number := j.Number
		if number == "" {
			number, err = s.seq.Next(ctx, tx, jt)
			if err != nil {
				return err
			}
		}
		postedAt := s.now()

		running := make(map[int64]decimal.Decimal, len(accts))
		for id, acct := range accts {
			running[id] = acct.CurrentBalance
		}
		for _, l := range lines {
			balance := running[l.AccountID].Add(l.Debit).Sub(l.Credit)
			running[l.AccountID] = balance
			if _, err := tx.InsertLedgerEntry(ctx, LedgerEntry{
				OrgID:            in.OrgID,
				AccountID:        l.AccountID,
				JournalID:        j.ID,
				JournalLineID:    l.ID,
				PeriodID:         j.PeriodID,
				Date:             j.Date,
				Debit:            l.Debit,
				Credit:           l.Credit,
				BalanceAfter:     balance,
				Currency:         l.Currency,
				ExchangeRate:     l.ExchangeRate,
				FunctionalDebit:  l.FunctionalDebit,
				FunctionalCredit: l.FunctionalCredit,
				DepartmentID:     l.DepartmentID,
				ProjectID:        l.ProjectID,
				CostCenterID:     l.CostCenterID,
				Description:      j.Description,
				SourceModule:     j.SourceModule,
			}); err != nil {
				return err
			}
		}
		for _, id := range sortedKeys(running) {
			if err := tx.UpdateAccountBalance(ctx, id, running[id]); err != nil {
				return err
			}
		}

		if err := tx.MarkPosted(ctx, j.ID, number, in.ActorID, postedAt); err != nil {
			return err
		}
		if j.ReversalOfID != nil {
			if err := tx.MarkReversed(ctx, *j.ReversalOfID); err != nil {
				return err
			}
		}

		posted = j
		posted.Number = number
		posted.Status = StatusPosted
		posted.PostedBy = &in.ActorID
		posted.PostedAt = &postedAt
		posted.Lines = lines
		return nil
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, in.OrgID, in.ActorID, "journal.post", posted.ID, map[string]any{
		"number":      posted.Number,
		"total_debit": posted.TotalDebit.String(),
	})
	return posted, nil
}

// CreateReversal builds a new draft mirroring a posted journal with debits
// and credits swapped. Posting the reversal marks the original REVERSED.
func (s *Service) CreateReversal(ctx context.Context, in ReverseInput) (Journal, error) {
	var reversal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orig, origLines, err := tx.GetJournalForUpdate(ctx, in.OrgID, in.JournalID)
		if err != nil {
			return err
		}
		if orig.Status != StatusPosted {
			return shared.ErrInvalidStatus
		}
		date := orig.Date
		if in.Date != nil {
			date = *in.Date
		}
		period, err := tx.GetPeriodForUpdate(ctx, in.OrgID, orig.PeriodID)
		if err != nil {
			return err
		}
		if err := checkPeriodWritable(period, date); err != nil {
			return err
		}
		description := in.Description
		if description == "" {
			description = fmt.Sprintf("Reversal of %s", orig.Number)
		}
		header := Journal{
			OrgID:         orig.OrgID,
			JournalTypeID: orig.JournalTypeID,
			PeriodID:      orig.PeriodID,
			Date:          date,
			Reference:     orig.Number,
			Description:   description,
			Currency:      orig.Currency,
			ExchangeRate:  orig.ExchangeRate,
			TotalDebit:    orig.TotalCredit,
			TotalCredit:   orig.TotalDebit,
			Status:        StatusDraft,
			SourceModule:  orig.SourceModule,
			SourceID:      orig.SourceID,
			ReversalOfID:  &orig.ID,
		}
		reversal, err = tx.InsertJournal(ctx, header)
		if err != nil {
			return err
		}
		swapped := make([]Line, 0, len(origLines))
		for _, l := range origLines {
			swapped = append(swapped, Line{
				LineNumber:       l.LineNumber,
				AccountID:        l.AccountID,
				Debit:            l.Credit,
				Credit:           l.Debit,
				Currency:         l.Currency,
				ExchangeRate:     l.ExchangeRate,
				FunctionalDebit:  l.FunctionalCredit,
				FunctionalCredit: l.FunctionalDebit,
				DepartmentID:     l.DepartmentID,
				ProjectID:        l.ProjectID,
				CostCenterID:     l.CostCenterID,
				Memo:             l.Memo,
			})
		}
		reversal.Lines, err = tx.InsertLines(ctx, reversal.ID, swapped)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, in.OrgID, in.ActorID, "journal.reverse", reversal.ID, map[string]any{
		"reversal_of": in.JournalID,
	})
	return reversal, nil
}

func validatePostable(j Journal, lines []Line) error {
	if len(lines) < 2 {
		return shared.ErrTooFewLines
	}
	if !j.TotalDebit.Equal(j.TotalCredit) {
		return shared.ErrUnbalanced
	}
	var debit, credit decimal.Decimal
	for _, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() || l.Debit.IsPositive() == l.Credit.IsPositive() {
			return fmt.Errorf("journals: line %d: %w", l.LineNumber, shared.ErrInvalidLine)
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	if !debit.Equal(j.TotalDebit) || !credit.Equal(j.TotalCredit) {
		return shared.ErrLineMismatch
	}
	return nil
}

func checkPeriodWritable(p calendar.Period, date time.Time) error {
	if p.Status != calendar.PeriodStatusOpen && p.Status != calendar.PeriodStatusAdjustment {
		return shared.ErrPeriodClosed
	}
	if date.Before(p.StartDate) || date.After(p.EndDate) {
		return shared.ErrDateOutOfRange
	}
	return nil
}

func accountIDs(lines []Line) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedKeys(m map[int64]decimal.Decimal) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *Service) record(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}

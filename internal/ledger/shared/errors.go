// Package shared holds sentinel errors and the error taxonomy used across
// the ledger core.
package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUnbalanced indicates journal header debit != credit.
	ErrUnbalanced = errors.New("ledger: journal not balanced")
	// ErrLineMismatch indicates line sums disagree with header totals.
	ErrLineMismatch = errors.New("ledger: line totals do not match journal totals")
	// ErrInvalidLine indicates a line with both or neither of debit/credit set.
	ErrInvalidLine = errors.New("ledger: line must carry exactly one of debit or credit")
	// ErrMissingDimension indicates a required line dimension is absent.
	ErrMissingDimension = errors.New("ledger: required dimension missing on line")
	// ErrInvalidDateRange indicates start >= end.
	ErrInvalidDateRange = errors.New("ledger: start date must precede end date")
	// ErrInvalidCurrency indicates a non-ISO currency code.
	ErrInvalidCurrency = errors.New("ledger: invalid currency code")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrDateOutOfRange indicates a journal date outside its period.
	ErrDateOutOfRange = errors.New("ledger: date outside period")

	// ErrInvalidStatus indicates the entity is in the wrong state for the operation.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrPeriodClosed indicates posting into a closed period.
	ErrPeriodClosed = errors.New("ledger: accounting period is closed")
	// ErrOpenJournalsExist blocks closing a period that still has unposted journals.
	ErrOpenJournalsExist = errors.New("ledger: period has unposted journals")
	// ErrUnbalancedJournal blocks closing a period containing an unbalanced posted journal.
	ErrUnbalancedJournal = errors.New("ledger: period has unbalanced journal")

	// ErrDuplicatePost indicates re-posting an already posted journal.
	ErrDuplicatePost = errors.New("ledger: journal already posted")

	// ErrConflict indicates a lock timeout or a unique-constraint race.
	ErrConflict = errors.New("ledger: concurrent modification conflict")
	// ErrPeriodOverlap indicates a fiscal year or period range collision.
	ErrPeriodOverlap = errors.New("ledger: date range overlaps existing range")
	// ErrNotContiguous indicates a fiscal year not adjacent to its neighbour.
	ErrNotContiguous = errors.New("ledger: fiscal year must be contiguous with adjacent year")

	// ErrCodeSpaceExhausted indicates no free slot in the account code band.
	ErrCodeSpaceExhausted = errors.New("ledger: account code space exhausted")

	// ErrAccountNotFound indicates a missing chart-of-accounts row.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrJournalNotFound indicates a missing journal.
	ErrJournalNotFound = errors.New("ledger: journal not found")
	// ErrPeriodNotFound indicates a missing accounting period.
	ErrPeriodNotFound = errors.New("ledger: period not found")
	// ErrFiscalYearNotFound indicates a missing fiscal year.
	ErrFiscalYearNotFound = errors.New("ledger: fiscal year not found")
	// ErrJournalTypeNotFound indicates a missing journal type.
	ErrJournalTypeNotFound = errors.New("ledger: journal type not found")
	// ErrRateNotFound indicates a missing exchange rate quote.
	ErrRateNotFound = errors.New("ledger: exchange rate not found")

	// ErrTreeTooDeep indicates the account tree exceeds the depth limit.
	ErrTreeTooDeep = errors.New("ledger: account tree exceeds maximum depth")
	// ErrTreeCycle indicates a cycle in the parent chain.
	ErrTreeCycle = errors.New("ledger: account parent chain contains a cycle")
	// ErrTypeMismatch indicates a child account typed differently from its parent.
	ErrTypeMismatch = errors.New("ledger: child account type must match parent")
)

// Kind classifies errors into the coarse taxonomy the HTTP layer maps to
// status codes. Unknown errors classify as KindInternal.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindState
	KindConflict
	KindOverflow
	KindDuplicatePost
	KindNotFound
)

// Classify returns the taxonomy bucket for err.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrUnbalanced),
		errors.Is(err, ErrLineMismatch),
		errors.Is(err, ErrInvalidLine),
		errors.Is(err, ErrMissingDimension),
		errors.Is(err, ErrInvalidDateRange),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, ErrTooFewLines),
		errors.Is(err, ErrDateOutOfRange),
		errors.Is(err, ErrPeriodOverlap),
		errors.Is(err, ErrNotContiguous),
		errors.Is(err, ErrTreeTooDeep),
		errors.Is(err, ErrTreeCycle),
		errors.Is(err, ErrTypeMismatch):
		return KindValidation
	case errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrPeriodClosed),
		errors.Is(err, ErrOpenJournalsExist),
		errors.Is(err, ErrUnbalancedJournal):
		return KindState
	case errors.Is(err, ErrDuplicatePost):
		return KindDuplicatePost
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrCodeSpaceExhausted):
		return KindOverflow
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrJournalNotFound),
		errors.Is(err, ErrPeriodNotFound),
		errors.Is(err, ErrFiscalYearNotFound),
		errors.Is(err, ErrJournalTypeNotFound),
		errors.Is(err, ErrRateNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// UniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505). Repositories map these to ErrConflict.
func UniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

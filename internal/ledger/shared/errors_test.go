package shared

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrUnbalanced, KindValidation},
		{ErrMissingDimension, KindValidation},
		{ErrTreeCycle, KindValidation},
		{ErrPeriodOverlap, KindValidation},
		{ErrNotContiguous, KindValidation},
		{ErrPeriodClosed, KindState},
		{ErrOpenJournalsExist, KindState},
		{ErrDuplicatePost, KindDuplicatePost},
		{ErrConflict, KindConflict},
		{ErrCodeSpaceExhausted, KindOverflow},
		{ErrJournalNotFound, KindNotFound},
		{ErrRateNotFound, KindNotFound},
		{fmt.Errorf("something else"), KindInternal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.err), "classify %v", tc.err)
	}
}

func TestClassifySeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("journals: line 3: %w", ErrInvalidLine)
	require.Equal(t, KindValidation, Classify(wrapped))
}

func TestUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_org_id_account_code_key"}
	require.True(t, UniqueViolation(dup))
	require.True(t, UniqueViolation(fmt.Errorf("insert account: %w", dup)))

	require.False(t, UniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, UniqueViolation(fmt.Errorf("plain failure")))
	require.False(t, UniqueViolation(nil))
}

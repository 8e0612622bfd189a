package journals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/calendar"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// memRepo emulates the posting transaction in memory. WithTx holds a mutex
// for the whole callback and restores a snapshot on error, matching the
// all-or-nothing behaviour of the real transaction.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	journals map[int64]Journal
	lines    map[int64][]Line
	types    map[int64]JournalType
	periods  map[int64]calendar.Period
	accounts map[int64]accounts.Account
	entries  []LedgerEntry
}

func newMemRepo() *memRepo {
	return &memRepo{
		journals: make(map[int64]Journal),
		lines:    make(map[int64][]Line),
		types:    make(map[int64]JournalType),
		periods:  make(map[int64]calendar.Period),
		accounts: make(map[int64]accounts.Account),
	}
}

func (r *memRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) snapshot() *memRepo {
	s := newMemRepo()
	s.nextID = r.nextID
	for k, v := range r.journals {
		s.journals[k] = v
	}
	for k, v := range r.lines {
		s.lines[k] = append([]Line(nil), v...)
	}
	for k, v := range r.types {
		s.types[k] = v
	}
	for k, v := range r.periods {
		s.periods[k] = v
	}
	for k, v := range r.accounts {
		s.accounts[k] = v
	}
	s.entries = append([]LedgerEntry(nil), r.entries...)
	return s
}

func (r *memRepo) restore(s *memRepo) {
	r.nextID = s.nextID
	r.journals = s.journals
	r.lines = s.lines
	r.types = s.types
	r.periods = s.periods
	r.accounts = s.accounts
	r.entries = s.entries
}

func (r *memRepo) List(ctx context.Context, orgID int64) ([]Journal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Journal
	for _, j := range r.journals {
		if j.OrgID == orgID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID > out[k].ID })
	return out, nil
}

func (r *memRepo) Get(ctx context.Context, orgID, id int64) (Journal, []Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getJournal(orgID, id)
}

func (r *memRepo) getJournal(orgID, id int64) (Journal, []Line, error) {
	j, ok := r.journals[id]
	if !ok || j.OrgID != orgID {
		return Journal{}, nil, shared.ErrJournalNotFound
	}
	lines := append([]Line(nil), r.lines[id]...)
	sort.Slice(lines, func(i, k int) bool { return lines[i].LineNumber < lines[k].LineNumber })
	return j, lines, nil
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, (*memTx)(r)); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

type memTx memRepo

func (t *memTx) GetJournalForUpdate(ctx context.Context, orgID, id int64) (Journal, []Line, error) {
	return (*memRepo)(t).getJournal(orgID, id)
}

func (t *memTx) GetJournalTypeForUpdate(ctx context.Context, orgID, id int64) (JournalType, error) {
	jt, ok := t.types[id]
	if !ok || jt.OrgID != orgID {
		return JournalType{}, shared.ErrJournalTypeNotFound
	}
	return jt, nil
}

func (t *memTx) BumpJournalTypeCounter(ctx context.Context, id, next int64) error {
	jt, ok := t.types[id]
	if !ok {
		return shared.ErrJournalTypeNotFound
	}
	jt.AutoNumberingNext = next
	t.types[id] = jt
	return nil
}

func (t *memTx) GetPeriodForUpdate(ctx context.Context, orgID, id int64) (calendar.Period, error) {
	p, ok := t.periods[id]
	if !ok || p.OrgID != orgID {
		return calendar.Period{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (t *memTx) GetAccountsForUpdate(ctx context.Context, orgID int64, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		a, ok := t.accounts[id]
		if !ok || a.OrgID != orgID {
			return nil, shared.ErrAccountNotFound
		}
		out[id] = a
	}
	return out, nil
}

func (t *memTx) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	a, ok := t.accounts[accountID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.CurrentBalance = balance
	t.accounts[accountID] = a
	return nil
}

func (t *memTx) InsertJournal(ctx context.Context, j Journal) (Journal, error) {
	j.ID = (*memRepo)(t).id()
	t.journals[j.ID] = j
	return j, nil
}

func (t *memTx) InsertLines(ctx context.Context, journalID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		l.ID = (*memRepo)(t).id()
		l.JournalID = journalID
		out = append(out, l)
	}
	t.lines[journalID] = out
	return out, nil
}

func (t *memTx) InsertLedgerEntry(ctx context.Context, e LedgerEntry) (LedgerEntry, error) {
	e.ID = (*memRepo)(t).id()
	t.entries = append(t.entries, e)
	return e, nil
}

func (t *memTx) MarkPosted(ctx context.Context, journalID int64, number string, postedBy int64, postedAt time.Time) error {
	j, ok := t.journals[journalID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	if j.Status != StatusDraft && j.Status != StatusApproved {
		return shared.ErrDuplicatePost
	}
	j.Status = StatusPosted
	j.Number = number
	j.PostedBy = &postedBy
	j.PostedAt = &postedAt
	t.journals[journalID] = j
	return nil
}

func (t *memTx) MarkReversed(ctx context.Context, journalID int64) error {
	j, ok := t.journals[journalID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	if j.Status != StatusPosted {
		return shared.ErrInvalidStatus
	}
	j.Status = StatusReversed
	t.journals[journalID] = j
	return nil
}

func (t *memTx) UpdateStatus(ctx context.Context, journalID int64, from, to Status) error {
	j, ok := t.journals[journalID]
	if !ok || j.Status != from {
		return shared.ErrInvalidStatus
	}
	j.Status = to
	t.journals[journalID] = j
	return nil
}

const (
	testOrg   = int64(1)
	testActor = int64(7)
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	repo      *memRepo
	svc       *Service
	periodID  int64
	typeID    int64
	cashID    int64
	revenueID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	f := &fixture{repo: repo, svc: NewService(repo, NewSequencer(), nil)}
	f.svc.WithNow(func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) })

	f.periodID = repo.id()
	repo.periods[f.periodID] = calendar.Period{
		ID: f.periodID, OrgID: testOrg, FiscalYearID: 1, Number: 3, Name: "2026-03",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    calendar.PeriodStatusOpen,
	}
	f.typeID = repo.id()
	repo.types[f.typeID] = JournalType{
		ID: f.typeID, OrgID: testOrg, Code: "GJ", Name: "General Journal",
		AutoNumberingPrefix: "GJ", AutoNumberingNext: 1,
	}
	f.cashID = repo.id()
	repo.accounts[f.cashID] = accounts.Account{
		ID: f.cashID, OrgID: testOrg, Code: "1000", Name: "Cash",
		CurrentBalance: decimal.Zero, IsActive: true,
	}
	f.revenueID = repo.id()
	repo.accounts[f.revenueID] = accounts.Account{
		ID: f.revenueID, OrgID: testOrg, Code: "4000", Name: "Revenue",
		CurrentBalance: decimal.Zero, IsActive: true,
	}
	return f
}

func (f *fixture) draftInput(amount string) CreateDraftInput {
	return CreateDraftInput{
		OrgID:         testOrg,
		ActorID:       testActor,
		JournalTypeID: f.typeID,
		PeriodID:      f.periodID,
		Date:          time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Description:   "cash sale",
		Currency:      "USD",
		Lines: []DraftLineInput{
			{AccountID: f.cashID, Debit: dec(amount)},
			{AccountID: f.revenueID, Credit: dec(amount)},
		},
	}
}

func TestCreateDraftComputesTotalsAndLineNumbers(t *testing.T) {
	f := newFixture(t)
	j, err := f.svc.CreateDraft(context.Background(), f.draftInput("100"))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, j.Status)
	require.Empty(t, j.Number)
	require.True(t, j.TotalDebit.Equal(dec("100")))
	require.True(t, j.TotalCredit.Equal(dec("100")))
	require.Len(t, j.Lines, 2)
	require.Equal(t, 1, j.Lines[0].LineNumber)
	require.Equal(t, 2, j.Lines[1].LineNumber)
	require.True(t, j.Lines[0].FunctionalDebit.Equal(dec("100")))
}

func TestCreateDraftRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	in := f.draftInput("100")
	in.Lines = in.Lines[:1]
	_, err := f.svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrTooFewLines)

	in = f.draftInput("100")
	in.Lines[1].Credit = dec("90")
	_, err = f.svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	in = f.draftInput("100")
	in.Lines[0].Credit = dec("100")
	_, err = f.svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrInvalidLine)

	in = f.draftInput("100")
	in.Currency = "NOPE"
	_, err = f.svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrInvalidCurrency)
}

func TestCreateDraftDateOutsidePeriod(t *testing.T) {
	f := newFixture(t)
	in := f.draftInput("100")
	in.Date = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateDraft(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrDateOutOfRange)
}

func TestPostAssignsNumberAndMovesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateDraft(ctx, f.draftInput("100"))
	require.NoError(t, err)

	posted, err := f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.NoError(t, err)
	require.Equal(t, "GJ1", posted.Number)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)

	require.True(t, f.repo.accounts[f.cashID].CurrentBalance.Equal(dec("100")))
	require.True(t, f.repo.accounts[f.revenueID].CurrentBalance.Equal(dec("-100")))

	require.Len(t, f.repo.entries, 2)
	require.True(t, f.repo.entries[0].BalanceAfter.Equal(dec("100")))
	require.True(t, f.repo.entries[1].BalanceAfter.Equal(dec("-100")))
	require.EqualValues(t, 2, f.repo.types[f.typeID].AutoNumberingNext)
}

func TestPostTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateDraft(ctx, f.draftInput("50"))
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrDuplicatePost)

	// Double post must not double anything.
	require.True(t, f.repo.accounts[f.cashID].CurrentBalance.Equal(dec("50")))
	require.Len(t, f.repo.entries, 2)
	require.EqualValues(t, 2, f.repo.types[f.typeID].AutoNumberingNext)
}

func TestPostTamperedHeaderFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateDraft(ctx, f.draftInput("100"))
	require.NoError(t, err)

	j := f.repo.journals[draft.ID]
	j.TotalCredit = dec("90")
	f.repo.journals[draft.ID] = j
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	j.TotalCredit = dec("100")
	j.TotalDebit = dec("100")
	f.repo.journals[draft.ID] = j
	f.repo.lines[draft.ID][0].Debit = dec("90")
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrLineMismatch)

	// Failed posts leave no trace.
	require.True(t, f.repo.accounts[f.cashID].CurrentBalance.IsZero())
	require.Empty(t, f.repo.entries)
	require.EqualValues(t, 1, f.repo.types[f.typeID].AutoNumberingNext)
}

func TestPostClosedPeriodFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateDraft(ctx, f.draftInput("100"))
	require.NoError(t, err)

	p := f.repo.periods[f.periodID]
	p.Status = calendar.PeriodStatusClosed
	f.repo.periods[f.periodID] = p

	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	p.Status = calendar.PeriodStatusAdjustment
	f.repo.periods[f.periodID] = p
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.NoError(t, err)
}

func TestPostMissingDimensionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.repo.accounts[f.cashID]
	a.RequireDepartment = true
	f.repo.accounts[f.cashID] = a

	draft, err := f.svc.CreateDraft(ctx, f.draftInput("100"))
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrMissingDimension)

	dept := int64(42)
	in := f.draftInput("100")
	in.Lines[0].DepartmentID = &dept
	draft, err = f.svc.CreateDraft(ctx, in)
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.NoError(t, err)
}

func TestPostRequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jt := f.repo.types[f.typeID]
	jt.RequiresApproval = true
	f.repo.types[f.typeID] = jt

	draft, err := f.svc.CreateDraft(ctx, f.draftInput("100"))
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	require.NoError(t, f.svc.Approve(ctx, ReviewInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor}))
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.NoError(t, err)
}

func TestRejectBlocksPosting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateDraft(ctx, f.draftInput("100"))
	require.NoError(t, err)
	require.NoError(t, f.svc.Reject(ctx, ReviewInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor}))
	_, err = f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestReversalRestoresBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateDraft(ctx, f.draftInput("250"))
	require.NoError(t, err)
	posted, err := f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.NoError(t, err)

	rev, err := f.svc.CreateReversal(ctx, ReverseInput{OrgID: testOrg, JournalID: posted.ID, ActorID: testActor})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, rev.Status)
	require.Equal(t, posted.ID, *rev.ReversalOfID)
	require.True(t, rev.Lines[0].Credit.Equal(dec("250")))
	require.True(t, rev.Lines[1].Debit.Equal(dec("250")))

	postedRev, err := f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: rev.ID, ActorID: testActor})
	require.NoError(t, err)
	require.Equal(t, "GJ2", postedRev.Number)

	require.Equal(t, StatusReversed, f.repo.journals[posted.ID].Status)
	require.True(t, f.repo.accounts[f.cashID].CurrentBalance.IsZero())
	require.True(t, f.repo.accounts[f.revenueID].CurrentBalance.IsZero())
	require.Len(t, f.repo.entries, 4)
}

func TestReverseUnpostedFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreateDraft(ctx, f.draftInput("100"))
	require.NoError(t, err)
	_, err = f.svc.CreateReversal(ctx, ReverseInput{OrgID: testOrg, JournalID: draft.ID, ActorID: testActor})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestConcurrentPostsGetUniqueNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		draft, err := f.svc.CreateDraft(ctx, f.draftInput(fmt.Sprintf("%d", (i+1)*10)))
		require.NoError(t, err)
		ids[i] = draft.ID
	}

	var g errgroup.Group
	numbers := make([]string, n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			posted, err := f.svc.Post(ctx, PostInput{OrgID: testOrg, JournalID: ids[i], ActorID: testActor})
			if err != nil {
				return err
			}
			numbers[i] = posted.Number
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, n)
	for _, num := range numbers {
		require.False(t, seen[num], "number %s assigned twice", num)
		seen[num] = true
	}
	for i := 1; i <= n; i++ {
		require.True(t, seen[fmt.Sprintf("GJ%d", i)], "missing GJ%d", i)
	}
	require.EqualValues(t, n+1, f.repo.types[f.typeID].AutoNumberingNext)
}

package accounts

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// memRepo emulates the allocation transaction in memory. The mutex held
// across WithTx stands in for the advisory lock.
type memRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]Account
	types    map[int64]AccountType
}

func newMemRepo() *memRepo {
	return &memRepo{accounts: make(map[int64]Account), types: make(map[int64]AccountType)}
}

func (r *memRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) addType(at AccountType) AccountType {
	at.ID = r.id()
	r.types[at.ID] = at
	return at
}

func (r *memRepo) List(ctx context.Context, orgID int64) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, a := range r.accounts {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) Get(ctx context.Context, orgID, id int64) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(orgID, id)
}

func (r *memRepo) get(orgID, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok || a.OrgID != orgID {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Account, len(r.accounts))
	for k, v := range r.accounts {
		snapshot[k] = v
	}
	nextID := r.nextID
	if err := fn(ctx, (*memTx)(r)); err != nil {
		r.accounts = snapshot
		r.nextID = nextID
		return err
	}
	return nil
}

type memTx memRepo

func (t *memTx) AcquireAllocationLock(ctx context.Context, key int64) error {
	return nil
}

func (t *memTx) Get(ctx context.Context, orgID, id int64) (Account, error) {
	return (*memRepo)(t).get(orgID, id)
}

func (t *memTx) GetAccountType(ctx context.Context, id int64) (AccountType, error) {
	at, ok := t.types[id]
	if !ok {
		return AccountType{}, shared.ErrAccountNotFound
	}
	return at, nil
}

func (t *memTx) ListRootCodes(ctx context.Context, orgID int64, lo, hi int) ([]int, error) {
	var out []int
	for _, a := range t.accounts {
		if a.OrgID != orgID || a.ParentID != nil {
			continue
		}
		code, err := strconv.Atoi(a.Code)
		if err != nil {
			continue
		}
		if code >= lo && code <= hi {
			out = append(out, code)
		}
	}
	return out, nil
}

func (t *memTx) ListChildCodes(ctx context.Context, orgID, parentID int64) ([]string, error) {
	var out []string
	for _, a := range t.accounts {
		if a.OrgID == orgID && a.ParentID != nil && *a.ParentID == parentID {
			out = append(out, a.Code)
		}
	}
	return out, nil
}

func (t *memTx) Insert(ctx context.Context, a Account) (Account, error) {
	for _, existing := range t.accounts {
		if existing.OrgID == a.OrgID && existing.Code == a.Code {
			return Account{}, shared.ErrConflict
		}
	}
	a.ID = (*memRepo)(t).id()
	if a.ParentID != nil {
		pid := *a.ParentID
		a.ParentID = &pid
	}
	t.accounts[a.ID] = a
	return a, nil
}

const testOrg = int64(1)

type fixture struct {
	repo   *memRepo
	svc    *Service
	assets AccountType
	liabs  AccountType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	f := &fixture{
		repo:   repo,
		svc:    NewService(repo, NewAllocator(), nil),
		assets: repo.addType(AccountType{Code: "AS", Name: "Assets", Nature: NatureAsset}),
		liabs:  repo.addType(AccountType{Code: "LI", Name: "Liabilities", Nature: NatureLiability}),
	}
	return f
}

func (f *fixture) create(t *testing.T, name string, typeID int64, parentID *int64) Account {
	t.Helper()
	account, err := f.svc.Create(context.Background(), CreateInput{
		OrgID:         testOrg,
		AccountTypeID: typeID,
		ParentID:      parentID,
		Name:          name,
	})
	require.NoError(t, err)
	return account
}

func TestCreateRootUsesNatureBand(t *testing.T) {
	f := newFixture(t)

	cash := f.create(t, "Cash", f.assets.ID, nil)
	require.Equal(t, "1000", cash.Code)
	require.Equal(t, "1000", cash.TreePath)
	require.Equal(t, 1, cash.Level)
	require.True(t, cash.IsActive)

	bank := f.create(t, "Bank", f.assets.ID, nil)
	require.Equal(t, "1010", bank.Code)

	loans := f.create(t, "Loans", f.liabs.ID, nil)
	require.Equal(t, "2000", loans.Code)
}

func TestCreateRootReusesFreedSlot(t *testing.T) {
	f := newFixture(t)
	cash := f.create(t, "Cash", f.assets.ID, nil)
	f.create(t, "Bank", f.assets.ID, nil)

	delete(f.repo.accounts, cash.ID)
	refill := f.create(t, "Petty Cash", f.assets.ID, nil)
	require.Equal(t, "1000", refill.Code)
}

func TestCreateChildSuffixes(t *testing.T) {
	f := newFixture(t)
	cash := f.create(t, "Cash", f.assets.ID, nil)

	first := f.create(t, "Cash USD", f.assets.ID, &cash.ID)
	require.Equal(t, "1000.01", first.Code)
	require.Equal(t, "1000/1000.01", first.TreePath)
	require.Equal(t, 2, first.Level)

	second := f.create(t, "Cash EUR", f.assets.ID, &cash.ID)
	require.Equal(t, "1000.02", second.Code)

	grandchild := f.create(t, "Cash EUR Petty", f.assets.ID, &second.ID)
	require.Equal(t, "1000.02.01", grandchild.Code)
	require.Equal(t, "1000/1000.02/1000.02.01", grandchild.TreePath)
	require.Equal(t, 3, grandchild.Level)
}

func TestCreateChildTypeMismatch(t *testing.T) {
	f := newFixture(t)
	cash := f.create(t, "Cash", f.assets.ID, nil)
	_, err := f.svc.Create(context.Background(), CreateInput{
		OrgID:         testOrg,
		AccountTypeID: f.liabs.ID,
		ParentID:      &cash.ID,
		Name:          "Wrong",
	})
	require.ErrorIs(t, err, shared.ErrTypeMismatch)
}

func TestCreateChildDepthLimit(t *testing.T) {
	f := newFixture(t)
	parent := f.create(t, "Root", f.assets.ID, nil)
	for level := 2; level <= MaxTreeDepth; level++ {
		parent = f.create(t, fmt.Sprintf("Level %d", level), f.assets.ID, &parent.ID)
	}
	require.Equal(t, MaxTreeDepth, parent.Level)

	_, err := f.svc.Create(context.Background(), CreateInput{
		OrgID:         testOrg,
		AccountTypeID: f.assets.ID,
		ParentID:      &parent.ID,
		Name:          "Too deep",
	})
	require.ErrorIs(t, err, shared.ErrTreeTooDeep)
}

func TestRootCodeSpaceExhausted(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < MaxSiblings; i++ {
		f.create(t, fmt.Sprintf("Asset %d", i), f.assets.ID, nil)
	}
	_, err := f.svc.Create(context.Background(), CreateInput{
		OrgID:         testOrg,
		AccountTypeID: f.assets.ID,
		Name:          "One too many",
	})
	require.ErrorIs(t, err, shared.ErrCodeSpaceExhausted)
}

func TestChildCodeSpaceExhausted(t *testing.T) {
	f := newFixture(t)
	cash := f.create(t, "Cash", f.assets.ID, nil)
	for i := 0; i < MaxSiblings; i++ {
		f.create(t, fmt.Sprintf("Sub %d", i), f.assets.ID, &cash.ID)
	}
	_, err := f.svc.Create(context.Background(), CreateInput{
		OrgID:         testOrg,
		AccountTypeID: f.assets.ID,
		ParentID:      &cash.ID,
		Name:          "One too many",
	})
	require.ErrorIs(t, err, shared.ErrCodeSpaceExhausted)
}

func TestCreateRejectsBadCurrency(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{
		OrgID:         testOrg,
		AccountTypeID: f.assets.ID,
		Name:          "Cash",
		Currency:      "XYZ1",
	})
	require.ErrorIs(t, err, shared.ErrInvalidCurrency)
}

func TestConcurrentRootAllocationsAreDistinct(t *testing.T) {
	f := newFixture(t)

	const n = 20
	var g errgroup.Group
	codes := make([]string, n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			account, err := f.svc.Create(context.Background(), CreateInput{
				OrgID:         testOrg,
				AccountTypeID: f.assets.ID,
				Name:          fmt.Sprintf("Account %d", i),
			})
			if err != nil {
				return err
			}
			codes[i] = account.Code
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, n)
	for _, code := range codes {
		require.False(t, seen[code], "code %s allocated twice", code)
		seen[code] = true
	}
	// The band fills bottom-up with no gaps.
	for i := 0; i < n; i++ {
		want := strconv.Itoa(1000 + i*DefaultRootStep)
		require.True(t, seen[want], "missing code %s; got %s", want, strings.Join(codes, ","))
	}
}

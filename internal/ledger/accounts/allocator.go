package accounts

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// Allocation is the result of a code allocation: everything immutable that
// must be stamped on the new account at insert time.
type Allocation struct {
	Code     string
	TreePath string
	Level    int
}

// Allocator computes collision-free hierarchical account codes. It must run
// inside the transaction that inserts the account, after the advisory lock
// for the (org, parent) scope has been acquired, so two concurrent creations
// cannot observe the same free slot.
type Allocator struct{}

// NewAllocator returns an Allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate picks the first unused code under the given parent (or in the
// account type's top-level band when parentID is nil) and returns it with
// the derived tree path and level.
func (a *Allocator) Allocate(ctx context.Context, tx TxRepository, orgID int64, parentID *int64, accountTypeID int64) (Allocation, error) {
	lockParent := int64(0)
	if parentID != nil {
		lockParent = *parentID
	}
	if err := tx.AcquireAllocationLock(ctx, internalShared.AllocationLockKey(orgID, lockParent)); err != nil {
		return Allocation{}, err
	}

	if parentID == nil {
		return a.allocateRoot(ctx, tx, orgID, accountTypeID)
	}
	return a.allocateChild(ctx, tx, orgID, *parentID, accountTypeID)
}

func (a *Allocator) allocateRoot(ctx context.Context, tx TxRepository, orgID, accountTypeID int64) (Allocation, error) {
	at, err := tx.GetAccountType(ctx, accountTypeID)
	if err != nil {
		return Allocation{}, err
	}
	prefix := at.RootCodePrefix
	if prefix == 0 {
		prefix = natureBands[at.Nature]
	}
	if prefix == 0 {
		return Allocation{}, fmt.Errorf("accounts: no code band for nature %q", at.Nature)
	}
	step := at.RootCodeStep
	if step <= 0 {
		step = DefaultRootStep
	}

	hi := prefix + (MaxSiblings-1)*step
	existing, err := tx.ListRootCodes(ctx, orgID, prefix, hi)
	if err != nil {
		return Allocation{}, err
	}
	used := make(map[int]struct{}, len(existing))
	for _, c := range existing {
		used[c] = struct{}{}
	}
	for k := 0; k < MaxSiblings; k++ {
		candidate := prefix + k*step
		if _, ok := used[candidate]; !ok {
			code := fmt.Sprintf("%d", candidate)
			return Allocation{Code: code, TreePath: code, Level: 1}, nil
		}
	}
	return Allocation{}, shared.ErrCodeSpaceExhausted
}

func (a *Allocator) allocateChild(ctx context.Context, tx TxRepository, orgID, parentID, accountTypeID int64) (Allocation, error) {
	parent, err := tx.Get(ctx, orgID, parentID)
	if err != nil {
		return Allocation{}, err
	}
	if parent.AccountTypeID != accountTypeID {
		return Allocation{}, shared.ErrTypeMismatch
	}
	if err := validateChain(ctx, tx, orgID, parent); err != nil {
		return Allocation{}, err
	}

	existing, err := tx.ListChildCodes(ctx, orgID, parentID)
	if err != nil {
		return Allocation{}, err
	}
	used := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		used[c] = struct{}{}
	}
	for n := 1; n <= MaxSiblings; n++ {
		candidate := fmt.Sprintf("%s.%02d", parent.Code, n)
		if _, ok := used[candidate]; !ok {
			return Allocation{
				Code:     candidate,
				TreePath: parent.TreePath + "/" + candidate,
				Level:    parent.Level + 1,
			}, nil
		}
	}
	return Allocation{}, shared.ErrCodeSpaceExhausted
}

// validateChain walks the parent chain by single-step lookups, rejecting
// cycles and depth beyond MaxTreeDepth. The new child sits at
// parent.Level+1, so the walk is bounded.
func validateChain(ctx context.Context, tx TxRepository, orgID int64, parent Account) error {
	if parent.Level+1 > MaxTreeDepth {
		return shared.ErrTreeTooDeep
	}
	seen := map[int64]struct{}{parent.ID: {}}
	cur := parent
	for cur.ParentID != nil {
		if len(seen) > MaxTreeDepth {
			return shared.ErrTreeTooDeep
		}
		next, err := tx.Get(ctx, orgID, *cur.ParentID)
		if err != nil {
			return err
		}
		if _, dup := seen[next.ID]; dup {
			return shared.ErrTreeCycle
		}
		seen[next.ID] = struct{}{}
		cur = next
	}
	return nil
}

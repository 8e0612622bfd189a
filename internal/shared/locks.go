package shared

import (
	"fmt"
	"hash/fnv"
)

// AllocationLockKey derives the advisory-lock key that serializes account
// code allocation under one (org, parent) scope. parentID is 0 for
// top-level allocations.
func AllocationLockKey(orgID, parentID int64) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "coa:%d:%d", orgID, parentID)
	return int64(h.Sum64())
}

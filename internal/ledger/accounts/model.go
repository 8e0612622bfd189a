package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Nature enumerates account natures.
type Nature string

const (
	NatureAsset     Nature = "ASSET"
	NatureLiability Nature = "LIABILITY"
	NatureEquity    Nature = "EQUITY"
	NatureIncome    Nature = "INCOME"
	NatureExpense   Nature = "EXPENSE"
)

// AccountType is immutable reference data partitioning the code space.
type AccountType struct {
	ID             int64
	Code           string
	Name           string
	Nature         Nature
	RootCodePrefix int
	RootCodeStep   int
	DisplayOrder   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Account models a chart of accounts node. Code and TreePath are assigned
// at creation time and never change.
type Account struct {
	ID                int64
	OrgID             int64
	ParentID          *int64
	AccountTypeID     int64
	Code              string
	Name              string
	TreePath          string
	Level             int
	Currency          string
	OpeningBalance    decimal.Decimal
	CurrentBalance    decimal.Decimal
	RequireDepartment bool
	RequireProject    bool
	RequireCostCenter bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MaxTreeDepth bounds the account hierarchy.
const MaxTreeDepth = 10

// MaxSiblings bounds children under one parent and top-level slots per band.
const MaxSiblings = 99

// DefaultRootStep spaces top-level codes when the account type does not
// override it.
const DefaultRootStep = 10

// natureBands maps natures to their default top-level code prefix.
var natureBands = map[Nature]int{
	NatureAsset:     1000,
	NatureLiability: 2000,
	NatureEquity:    3000,
	NatureIncome:    4000,
	NatureExpense:   5000,
}

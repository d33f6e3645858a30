package model

import "strings"

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the side on which accounts of this type increase.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Side is one side of a double entry.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// Valid reports whether s is debit or credit.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Account is a row in the chart of accounts. Codes are dot-delimited and
// hierarchical ("1.1.02" is a child of "1.1").
type Account struct {
	Code        string
	Name        string
	Type        AccountType
	NormalSide  Side
	Header      bool // aggregator, never posted to
	Active      bool
	Description string
}

// ParentCode returns the code of the parent account, or "" for a top-level account.
func (a Account) ParentCode() string {
	i := strings.LastIndex(a.Code, ".")
	if i < 0 {
		return ""
	}
	return a.Code[:i]
}

// Postable reports whether journal lines may reference the account.
func (a Account) Postable() bool {
	return a.Active && !a.Header
}

// StructurallyEqual reports whether the parts of the account that are frozen
// once it carries posted lines are unchanged.
func (a Account) StructurallyEqual(b Account) bool {
	return a.Code == b.Code && a.Type == b.Type && a.NormalSide == b.NormalSide && a.Header == b.Header
}

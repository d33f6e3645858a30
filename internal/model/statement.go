package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the reconciliation state of a statement item or transaction.
type MatchStatus string

const (
	MatchUnmatched MatchStatus = "UNMATCHED"
	MatchMatched   MatchStatus = "MATCHED"
	MatchBankOnly  MatchStatus = "BANK_ONLY"
	MatchBookOnly  MatchStatus = "BOOK_ONLY"
)

// Terminal reports whether s closes the item for completion purposes.
func (s MatchStatus) Terminal() bool {
	return s == MatchMatched || s == MatchBankOnly || s == MatchBookOnly
}

// MatchType records which strategy produced a pairing.
type MatchType string

const (
	MatchExact     MatchType = "EXACT"
	MatchFuzzyDate MatchType = "FUZZY_DATE"
	MatchKeyword   MatchType = "KEYWORD"
	MatchManual    MatchType = "MANUAL"
)

// Automatic reports whether the match type was produced by auto-matching.
func (t MatchType) Automatic() bool {
	return t == MatchExact || t == MatchFuzzyDate || t == MatchKeyword
}

// BankStatement is an imported statement for one bank (cash) account.
type BankStatement struct {
	ID             string
	AccountCode    string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	SourceFile     string
	ImportedAt     time.Time
	Items          []BankStatementItem
}

// BankStatementItem is one normalized statement line. Debit is money leaving
// the bank account, Credit is money arriving.
type BankStatementItem struct {
	ID                   string
	LineNo               int
	Date                 time.Time
	Description          string
	Reference            string
	Debit                decimal.Decimal
	Credit               decimal.Decimal
	RunningBalance       decimal.NullDecimal
	MatchStatus          MatchStatus
	MatchType            MatchType
	MatchedTransactionID string
}

// Signed returns the item's effect on the bank balance (deposits positive).
func (i BankStatementItem) Signed() decimal.Decimal {
	return i.Credit.Sub(i.Debit)
}

// Item returns the statement item with the given id.
func (s BankStatement) Item(id string) (BankStatementItem, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return BankStatementItem{}, false
}

package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// Options tunes candidate selection and matching.
type Options struct {
	// FuzzyDateDays is the FUZZY_DATE tolerance, in days either side.
	FuzzyDateDays int
	// KeywordThreshold is the minimum description similarity for KEYWORD.
	KeywordThreshold float64
	// MinTokenLength drops shorter words from keyword comparison.
	MinTokenLength int
	// LookbackDays widens the candidate window before the period start to
	// catch outstanding items from earlier periods.
	LookbackDays int
}

// DefaultOptions returns the standard matching configuration.
func DefaultOptions() Options {
	return Options{
		FuzzyDateDays:    3,
		KeywordThreshold: 0.5,
		MinTokenLength:   3,
		LookbackDays:     60,
	}
}

// Candidate is a book transaction offered to the matcher together with its
// effect on the reconciled cash account.
type Candidate struct {
	Transaction model.Transaction
	Effect      decimal.Decimal
}

// Pair is one auto-match decision.
type Pair struct {
	ItemID        string
	TransactionID string
	Type          model.MatchType
	Score         float64
}

type scored struct {
	idx   int
	days  int
	score float64
}

// better orders competing candidates: higher score, then closer date, then
// lower document number.
func better(a, b scored, cands []Candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.days != b.days {
		return a.days < b.days
	}
	return cands[a.idx].Transaction.DocumentNumber < cands[b.idx].Transaction.DocumentNumber
}

// Match pairs statement items with candidates. Each strategy runs over the
// whole working set before the next one starts, so an EXACT pair is never
// lost to an earlier item's FUZZY_DATE or KEYWORD pick. Items are visited in
// line order and every item and candidate is consumed at most once.
//
// EXACT and FUZZY_DATE ties go to the closest date, then the lowest
// document number. KEYWORD prefers the higher similarity score first and
// only then applies the same date and document number order.
func Match(items []model.BankStatementItem, cands []Candidate, opts Options) []Pair {
	var (
		pairs    []Pair
		itemUsed = make([]bool, len(items))
		candUsed = make([]bool, len(cands))
	)

	pass := func(kind model.MatchType, accept func(it model.BankStatementItem, c Candidate) (scored, bool)) {
		for i, it := range items {
			if itemUsed[i] {
				continue
			}
			best := scored{idx: -1}
			for j, c := range cands {
				if candUsed[j] || !c.Effect.Equal(it.Signed()) {
					continue
				}
				s, ok := accept(it, c)
				if !ok {
					continue
				}
				s.idx = j
				if best.idx < 0 || better(s, best, cands) {
					best = s
				}
			}
			if best.idx < 0 {
				continue
			}
			itemUsed[i] = true
			candUsed[best.idx] = true
			pairs = append(pairs, Pair{
				ItemID:        it.ID,
				TransactionID: cands[best.idx].Transaction.ID,
				Type:          kind,
				Score:         best.score,
			})
		}
	}

	pass(model.MatchExact, func(it model.BankStatementItem, c Candidate) (scored, bool) {
		return scored{score: 1}, model.Day(it.Date).Equal(model.Day(c.Transaction.Date))
	})
	pass(model.MatchFuzzyDate, func(it model.BankStatementItem, c Candidate) (scored, bool) {
		d := model.DaysBetween(it.Date, c.Transaction.Date)
		return scored{days: d, score: 1}, d <= opts.FuzzyDateDays
	})
	pass(model.MatchKeyword, func(it model.BankStatementItem, c Candidate) (scored, bool) {
		s := Similarity(itemText(it), bookText(c.Transaction), opts.MinTokenLength)
		return scored{days: model.DaysBetween(it.Date, c.Transaction.Date), score: s}, s >= opts.KeywordThreshold
	})
	return pairs
}

func itemText(it model.BankStatementItem) string {
	return strings.TrimSpace(it.Description + " " + it.Reference)
}

func bookText(t model.Transaction) string {
	parts := []string{t.Description, t.DocumentNumber}
	for _, l := range t.Lines {
		if l.Description != "" && l.Description != t.Description {
			parts = append(parts, l.Description)
		}
	}
	return strings.Join(parts, " ")
}

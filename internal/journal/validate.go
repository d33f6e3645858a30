package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// ValidationError describes a single invariant violation. Line is 0 for
// violations of the transaction as a whole.
type ValidationError struct {
	Invariant   int
	Line        int
	Description string
}

func (e ValidationError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("invariant %d: %s", e.Invariant, e.Description)
	}
	return fmt.Sprintf("invariant %d [line %d]: %s", e.Invariant, e.Line, e.Description)
}

// AccountChecker reports whether journal lines may reference an account.
type AccountChecker interface {
	Postable(code string) error
}

// ValidateLines enforces the line invariants of one transaction dated date.
func ValidateLines(lines []model.JournalEntry, accounts AccountChecker, date time.Time, places int32) []ValidationError {
	var errs []ValidationError

	if len(lines) < 2 {
		errs = append(errs, ValidationError{
			Invariant:   1,
			Description: fmt.Sprintf("a transaction needs at least two lines, got %d", len(lines)),
		})
	}

	// Invariant 1: the transaction balances.
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}
	if !totalDebit.Equal(totalCredit) {
		errs = append(errs, ValidationError{
			Invariant:   1,
			Description: fmt.Sprintf("debits (%s) != credits (%s)", totalDebit, totalCredit),
		})
	}

	day := model.Day(date)
	for i, l := range lines {
		// Invariant 2: exactly one of debit/credit, never negative.
		hasDebit := !l.Debit.IsZero()
		hasCredit := !l.Credit.IsZero()
		if hasDebit == hasCredit {
			errs = append(errs, ValidationError{
				Invariant:   2,
				Line:        l.LineNo,
				Description: "line must have exactly one of debit or credit",
			})
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			errs = append(errs, ValidationError{
				Invariant:   2,
				Line:        l.LineNo,
				Description: "amounts must not be negative",
			})
		}

		// Invariant 3: postable account references.
		if err := accounts.Postable(l.AccountCode); err != nil {
			errs = append(errs, ValidationError{
				Invariant:   3,
				Line:        l.LineNo,
				Description: err.Error(),
			})
		}

		// Invariant 4: lines carry the transaction date.
		if !l.Date.IsZero() && !model.Day(l.Date).Equal(day) {
			errs = append(errs, ValidationError{
				Invariant:   4,
				Line:        l.LineNo,
				Description: fmt.Sprintf("date %s differs from transaction date %s", l.Date.Format(model.DateFormat), day.Format(model.DateFormat)),
			})
		}

		// Invariant 5: line numbers run 1..N.
		if l.LineNo != i+1 {
			errs = append(errs, ValidationError{
				Invariant:   5,
				Line:        l.LineNo,
				Description: fmt.Sprintf("line number %d at position %d", l.LineNo, i+1),
			})
		}

		// Invariant 6: no more decimal places than the currency allows.
		for _, v := range []decimal.Decimal{l.Debit, l.Credit} {
			if !v.Equal(v.Truncate(places)) {
				errs = append(errs, ValidationError{
					Invariant:   6,
					Line:        l.LineNo,
					Description: fmt.Sprintf("amount %s has more than %d decimal places", v, places),
				})
			}
		}
	}

	return errs
}

// fold turns violations into one model.ValidationError.
func fold(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, ve := range errs {
		msgs[i] = ve.Error()
	}
	return model.Invalid("transaction", "lines", "%s", strings.Join(msgs, "; "))
}

package formula

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		formula string
		amount  string
		want    string
	}{
		{"amount", "1000000", "1000000"},
		{"amount * 0.89", "1000000", "890000"},
		{"amount * 0.11", "1000000", "110000"},
		{"amount*0.11", "0.50", "0.06"}, // 0.055 rounds half away from zero
		{"amount * 0.89", "0.50", "0.45"}, // 0.445 rounds up too
		{"(amount + 10) / 2", "90", "50"},
		{"amount / 3", "100", "33.33"},
		{"amount - round(amount / 1.11 * 0.11, 2)", "111", "100"},
		{"-amount + 2 * amount", "7.5", "7.5"},
		{"amount % 7", "50", "1"},
		{"1_000 + amount", "1", "1001"},
		{".5 * amount", "10", "5"},
		{"amount > 5_000_000 ? amount * 0.02 : 0", "10000000", "200000"},
		{"amount > 5_000_000 ? amount * 0.02 : 0", "5000000", "0"},
		{"amount >= 100 && amount < 200 ? 1 : 2", "150", "1"},
		{"amount < 100 || amount > 200 ? 1 : 2", "150", "2"},
		{"!(amount == 5) ? 1 : 0", "5", "0"},
		{"amount != 5 ? 1 : 0", "6", "1"},
		{"amount <= 5 ? amount > 1 ? 10 : 20 : 30", "3", "10"},
		{"min(amount, 500, 250)", "1000", "250"},
		{"max(amount * 0.01, 25)", "1000", "25"},
		{"abs(-amount)", "3", "3"},
		{"floor(amount / 7)", "50", "7"},
		{"ceil(amount / 7)", "50", "8"},
		{"round(amount / 3)", "100", "33"},
		{"round(amount / 3, 1)", "100", "33.3"},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.formula, dec(tt.amount), 2)
		require.NoError(t, err, "Evaluate(%q, %s)", tt.formula, tt.amount)
		assert.True(t, dec(tt.want).Equal(got), "Evaluate(%q, %s) = %s, want %s", tt.formula, tt.amount, got, tt.want)
	}
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		formula string
		msg     string
	}{
		{"", "blank"},
		{"   ", "blank"},
		{"amount *", "unexpected end of formula"},
		{"amount * * 2", "unexpected"},
		{"price * 2", "unknown identifier"},
		{"amount * 1..2", "second decimal point"},
		{"amount * 1__0", "digit separator"},
		{"amount $ 2", "unexpected character"},
		{"(amount * 2", `expected ")"`},
		{"amount * 2)", "after expression"},
		{"amount > 10", "must produce a number"},
		{"amount ? 1 : 2", "condition of ?: must be a comparison"},
		{"amount > 1 ? 1", `expected ":"`},
		{"amount > 1 ? 1 : amount > 2", "branches of ?: differ"},
		{"1 < amount < 3 ? 1 : 0", "cannot be chained"},
		{"(amount > 1) + 1", "must be numbers"},
		{"amount && amount ? 1 : 0", "must be conditions"},
		{"!amount", "must be a condition"},
		{"sqrt(amount)", "unknown function"},
		{"min(amount)", "at least 2 arguments"},
		{"abs(amount, 2)", "1 argument"},
		{"round()", "1 to 2 arguments"},
		{"max(amount > 1, 2)", "must be numbers"},
	}
	for _, tt := range tests {
		_, err := Compile(tt.formula)
		require.Error(t, err, "Compile(%q)", tt.formula)
		var se *SyntaxError
		assert.True(t, errors.As(err, &se), "Compile(%q) error type %T", tt.formula, err)
		assert.Contains(t, err.Error(), tt.msg, "Compile(%q)", tt.formula)
	}
}

func TestEval_RuntimeErrors(t *testing.T) {
	f := MustCompile("100 / (amount - 5)")
	_, err := f.Eval(dec("5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")

	_, err = MustCompile("amount % (amount - amount)").Eval(dec("1"))
	assert.ErrorContains(t, err, "division by zero")

	_, err = MustCompile("round(amount, 0.5)").Eval(dec("1"))
	assert.ErrorContains(t, err, "places must be an integer")
}

func TestEval_RequiresPositiveAmount(t *testing.T) {
	f := MustCompile("amount")
	_, err := f.Eval(decimal.Zero)
	assert.ErrorContains(t, err, "must be positive")
	_, err = f.Eval(dec("-1"))
	assert.ErrorContains(t, err, "must be positive")
}

func TestThresholds(t *testing.T) {
	f := MustCompile("amount > 5_000_000 ? amount * 0.02 : (1000 <= amount ? 5 : 0)")
	got := f.Thresholds()
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(dec("5000000")))
	assert.True(t, got[1].Equal(dec("1000")))

	assert.Empty(t, MustCompile("amount * 0.11").Thresholds())
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("amount +") })
}

// Evaluation is a pure function: repeated and concurrent evaluation of the
// same compiled formula returns identical results.
func TestEval_Deterministic(t *testing.T) {
	f := MustCompile("amount > 1000 ? amount * 0.11 : amount / 3")
	rng := rand.New(rand.NewSource(42))

	amounts := make([]decimal.Decimal, 200)
	want := make([]decimal.Decimal, len(amounts))
	for i := range amounts {
		amounts[i] = decimal.New(rng.Int63n(100_000_000)+1, -2)
		v, err := f.EvalRounded(amounts[i], 2)
		require.NoError(t, err)
		want[i] = v
	}

	done := make(chan []decimal.Decimal, 8)
	for g := 0; g < 8; g++ {
		go func() {
			out := make([]decimal.Decimal, len(amounts))
			for i, a := range amounts {
				out[i], _ = f.EvalRounded(a, 2)
			}
			done <- out
		}()
	}
	for g := 0; g < 8; g++ {
		out := <-done
		for i := range out {
			assert.True(t, want[i].Equal(out[i]))
		}
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "amount * 2", MustCompile("amount * 2").String())
}

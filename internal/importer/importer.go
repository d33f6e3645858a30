// Package importer decodes bank CSV exports into normalized statement
// lines and manages the import inbox directory.
package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/model"
)

// Parser converts a bank CSV file into statement lines.
type Parser interface {
	Parse(r io.Reader) ([]model.BankStatementItem, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists registered parser names, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&GenericParser{})
	return r
}

// Period returns the first and last dates of items.
func Period(items []model.BankStatementItem) (start, end time.Time) {
	for i, it := range items {
		if i == 0 || it.Date.Before(start) {
			start = it.Date
		}
		if i == 0 || it.Date.After(end) {
			end = it.Date
		}
	}
	return model.Day(start), model.Day(end)
}

// ErrNoRunningBalance means balances cannot be derived from the lines.
var ErrNoRunningBalance = errors.New("statement lines carry no running balance")

// Balances derives opening and closing balances from the running balances
// of the first and last lines.
func Balances(items []model.BankStatementItem) (opening, closing decimal.Decimal, err error) {
	if len(items) == 0 {
		return decimal.Zero, decimal.Zero, ErrNoRunningBalance
	}
	first, last := items[0], items[len(items)-1]
	if !first.RunningBalance.Valid || !last.RunningBalance.Valid {
		return decimal.Zero, decimal.Zero, ErrNoRunningBalance
	}
	return first.RunningBalance.Decimal.Sub(first.Signed()), last.RunningBalance.Decimal, nil
}

func sortByDate(items []model.BankStatementItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })
}

// setSigned stores a signed amount on the side it belongs to.
func setSigned(it *model.BankStatementItem, amount decimal.Decimal) {
	if amount.IsNegative() {
		it.Debit = amount.Neg()
		return
	}
	it.Credit = amount
}

func parseOptional(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

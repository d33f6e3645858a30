package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

var codePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// Chart provides in-memory lookup over a snapshot of the chart of accounts.
type Chart struct {
	accounts []model.Account
	byCode   map[string]model.Account
}

// NewChart creates a Chart from a slice of accounts, ordered by code.
func NewChart(accounts []model.Account) *Chart {
	sorted := append([]model.Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool { return lessCode(sorted[i].Code, sorted[j].Code) })
	byCode := make(map[string]model.Account, len(sorted))
	for _, a := range sorted {
		byCode[a.Code] = a
	}
	return &Chart{accounts: sorted, byCode: byCode}
}

// All returns all accounts ordered by code.
func (c *Chart) All() []model.Account {
	return c.accounts
}

// Get returns an account by code.
func (c *Chart) Get(code string) (model.Account, bool) {
	a, ok := c.byCode[code]
	return a, ok
}

// Exists reports whether an account code exists.
func (c *Chart) Exists(code string) bool {
	_, ok := c.byCode[code]
	return ok
}

// ByType returns all accounts of the given type.
func (c *Chart) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range c.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Depth returns the nesting level of code, 0 for top-level accounts.
func Depth(code string) int {
	return strings.Count(code, ".")
}

// lessCode orders codes segment by segment numerically, so "1.2" < "1.10".
func lessCode(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		if len(as[i]) != len(bs[i]) {
			return len(as[i]) < len(bs[i])
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}

// Validate checks the fields of a single account.
func Validate(a model.Account) error {
	if !codePattern.MatchString(a.Code) {
		return model.Invalid("account", "code", "%q is not a dot-delimited numeric code", a.Code)
	}
	if strings.TrimSpace(a.Name) == "" {
		return model.Invalid("account", "name", "required for %s", a.Code)
	}
	if !a.Type.Valid() {
		return model.Invalid("account", "type", "%q is not a known account type", a.Type)
	}
	if !a.NormalSide.Valid() {
		return model.Invalid("account", "normal_side", "%q must be debit or credit", a.NormalSide)
	}
	return nil
}

// Service manages the persisted chart of accounts.
type Service struct {
	store store.Store
	log   *zap.Logger
}

// NewService returns a Service over s.
func NewService(s store.Store, log *zap.Logger) *Service {
	return &Service{store: s, log: log}
}

// Import validates and stores accounts in one unit of work. Parents are
// written before children, so a batch may introduce a whole subtree.
func (s *Service) Import(ctx context.Context, accts []model.Account) error {
	sorted := append([]model.Account(nil), accts...)
	sort.SliceStable(sorted, func(i, j int) bool { return lessCode(sorted[i].Code, sorted[j].Code) })

	err := s.store.Update(ctx, func(tx store.Tx) error {
		for _, a := range sorted {
			if err := put(tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("accounts imported", zap.Int("count", len(sorted)))
	return nil
}

// Put creates or edits one account.
func (s *Service) Put(ctx context.Context, a model.Account) error {
	return s.store.Update(ctx, func(tx store.Tx) error {
		return put(tx, a)
	})
}

func put(tx store.Tx, a model.Account) error {
	if a.NormalSide == "" {
		a.NormalSide = a.Type.NormalSide()
	}
	if err := Validate(a); err != nil {
		return err
	}

	if parent := a.ParentCode(); parent != "" {
		p, err := tx.Account(parent)
		if err != nil {
			return fmt.Errorf("account %s: parent: %w", a.Code, err)
		}
		if !p.Header {
			return model.Invalid("account", "code", "parent %s of %s is not a header account", parent, a.Code)
		}
		if p.Type != a.Type {
			return model.Invalid("account", "type", "%s is %s but parent %s is %s", a.Code, a.Type, parent, p.Type)
		}
	}

	existing, err := tx.Account(a.Code)
	switch {
	case err == nil:
		if existing.Header && !a.Header {
			if err := requireNoChildren(tx, a.Code); err != nil {
				return err
			}
		}
		if !existing.Header && a.Header {
			if err := requireNoTemplateLines(tx, a.Code); err != nil {
				return err
			}
		}
		if !existing.StructurallyEqual(a) {
			used, err := tx.AccountInUse(a.Code)
			if err != nil {
				return err
			}
			if used {
				return model.Invalid("account", "code",
					"%s has posted lines; only name and description may change", a.Code)
			}
		}
	case !errors.Is(err, model.ErrNotFound):
		return err
	}
	return tx.PutAccount(a)
}

func requireNoChildren(tx store.Tx, code string) error {
	accts, err := tx.Accounts()
	if err != nil {
		return err
	}
	for _, c := range accts {
		if c.ParentCode() == code {
			return model.Invalid("account", "header", "%s has child account %s", code, c.Code)
		}
	}
	return nil
}

func requireNoTemplateLines(tx store.Tx, code string) error {
	tpls, err := tx.Templates()
	if err != nil {
		return err
	}
	for _, jt := range tpls {
		for _, l := range jt.Lines {
			if l.AccountCode == code {
				return model.Invalid("account", "header", "%s is used by template %s", code, jt.ID)
			}
		}
	}
	return nil
}

// Deactivate marks an account inactive. Templates referencing it fail to
// save until it is reactivated.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	return s.store.Update(ctx, func(tx store.Tx) error {
		a, err := tx.Account(code)
		if err != nil {
			return err
		}
		a.Active = false
		return tx.PutAccount(a)
	})
}

// Get returns an account by code.
func (s *Service) Get(ctx context.Context, code string) (model.Account, error) {
	var a model.Account
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		a, err = tx.Account(code)
		return err
	})
	return a, err
}

// Chart loads a snapshot of the whole chart.
func (s *Service) Chart(ctx context.Context) (*Chart, error) {
	var accts []model.Account
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		accts, err = tx.Accounts()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading chart of accounts: %w", err)
	}
	return NewChart(accts), nil
}

// RequirePostable returns the account if lines may reference it.
func RequirePostable(tx store.Tx, code string) (model.Account, error) {
	a, err := tx.Account(code)
	if err != nil {
		return model.Account{}, err
	}
	if a.Header {
		return model.Account{}, model.Invalid("account", "code", "%s is a header account", code)
	}
	if !a.Active {
		return model.Account{}, model.Invalid("account", "code", "%s is inactive", code)
	}
	return a, nil
}

package templates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/formula"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/sequence"
	"github.com/cleared-dev/ledger/internal/store"
)

// Validate checks everything about jt that does not need the store.
func Validate(jt model.JournalTemplate) error {
	if strings.TrimSpace(jt.Name) == "" {
		return model.Invalid("template", "name", "required")
	}
	if err := sequence.ValidateDocumentType(jt.DocumentType); err != nil {
		return err
	}

	var debits, credits int
	for i, l := range jt.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if strings.TrimSpace(l.AccountCode) == "" {
			return model.Invalid("template", field+".account", "required")
		}
		switch l.Side {
		case model.SideDebit:
			debits++
		case model.SideCredit:
			credits++
		default:
			return model.Invalid("template", field+".side", "%q must be debit or credit", l.Side)
		}
		if _, err := formula.Compile(l.Formula); err != nil {
			return model.Invalid("template", field+".formula", "%v", err)
		}
	}
	if debits == 0 || credits == 0 {
		return model.Invalid("template", "lines", "need at least one debit and one credit line")
	}
	return nil
}

// Service stores journal templates.
type Service struct {
	store  store.Store
	log    *zap.Logger
	places int32
	now    func() time.Time
}

// NewService returns a Service that rounds line amounts to places.
func NewService(s store.Store, log *zap.Logger, places int32) *Service {
	return &Service{store: s, log: log, places: places, now: time.Now}
}

// Save validates jt and stores it. A blank or unknown ID creates an active
// template at version 1; an existing ID stores the next version.
func (s *Service) Save(ctx context.Context, jt model.JournalTemplate) (model.JournalTemplate, error) {
	if err := Validate(jt); err != nil {
		return model.JournalTemplate{}, err
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		for i, l := range jt.Lines {
			if _, err := accounts.RequirePostable(tx, l.AccountCode); err != nil {
				return fmt.Errorf("lines[%d]: %w", i, err)
			}
		}
		if err := CheckBalanced(jt, s.places); err != nil {
			return err
		}

		if jt.ID == "" {
			jt.ID = id.New(id.PrefixTemplate)
			jt.Version = 1
			jt.Active = true
		} else {
			existing, err := tx.Template(jt.ID)
			switch {
			case err == nil:
				jt.Version = existing.Version + 1
			case errors.Is(err, model.ErrNotFound):
				jt.Version = 1
				jt.Active = true
			default:
				return err
			}
		}
		jt.UpdatedAt = s.now().UTC()
		return tx.PutTemplate(jt)
	})
	if err != nil {
		s.log.Warn("template rejected", zap.String("name", jt.Name), zap.Error(err))
		return model.JournalTemplate{}, err
	}

	s.log.Info("template saved",
		zap.String("template_id", jt.ID), zap.String("name", jt.Name), zap.Int("version", jt.Version))
	return jt, nil
}

// Get returns a template by id.
func (s *Service) Get(ctx context.Context, templateID string) (model.JournalTemplate, error) {
	var jt model.JournalTemplate
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		jt, err = tx.Template(templateID)
		return err
	})
	return jt, err
}

// List returns all templates ordered by name.
func (s *Service) List(ctx context.Context) ([]model.JournalTemplate, error) {
	var out []model.JournalTemplate
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Templates()
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SetActive activates or deactivates a template. Inactive templates cannot
// be posted.
func (s *Service) SetActive(ctx context.Context, templateID string, active bool) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		jt, err := tx.Template(templateID)
		if err != nil {
			return err
		}
		jt.Active = active
		jt.UpdatedAt = s.now().UTC()
		return tx.PutTemplate(jt)
	})
	if err != nil {
		return err
	}
	s.log.Info("template active flag changed", zap.String("template_id", templateID), zap.Bool("active", active))
	return nil
}

// Package journal is the posting engine: it expands templates into journal
// lines, allocates document numbers and moves transactions through
// DRAFT -> POSTED -> VOID.
package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/sequence"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/templates"
)

// Options configures a Service.
type Options struct {
	// Places is the currency precision line amounts are rounded to.
	Places int32
	// DefaultDocumentType numbers manual entries posted without a type.
	DefaultDocumentType string
}

// Service provides business logic for transactions.
type Service struct {
	store store.Store
	log   *zap.Logger
	opts  Options
	now   func() time.Time
}

// NewService creates a journal Service.
func NewService(s store.Store, log *zap.Logger, opts Options) *Service {
	if opts.DefaultDocumentType == "" {
		opts.DefaultDocumentType = "JV"
	}
	return &Service{store: s, log: log, opts: opts, now: time.Now}
}

// PostParams holds parameters for posting through a template.
type PostParams struct {
	TemplateID  string
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// ManualParams holds parameters for an entry with explicit lines.
type ManualParams struct {
	DocumentType string
	Date         time.Time
	Description  string
	Lines        []ManualLine
}

// ManualLine is one explicit journal line.
type ManualLine struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

type txAccounts struct{ tx store.Tx }

func (a txAccounts) Postable(code string) error {
	_, err := accounts.RequirePostable(a.tx, code)
	return err
}

// Post expands the template for the amount and commits a POSTED
// transaction with the next document number, all in one unit of work.
func (s *Service) Post(ctx context.Context, p PostParams) (model.Transaction, error) {
	return s.fromTemplate(ctx, p, model.TransactionPosted)
}

// CreateDraft stores a DRAFT with its evaluated lines and no document number.
func (s *Service) CreateDraft(ctx context.Context, p PostParams) (model.Transaction, error) {
	return s.fromTemplate(ctx, p, model.TransactionDraft)
}

func (s *Service) fromTemplate(ctx context.Context, p PostParams, status model.TransactionStatus) (model.Transaction, error) {
	if p.Date.IsZero() {
		return model.Transaction{}, model.Invalid("transaction", "date", "required")
	}
	if !p.Amount.IsPositive() {
		return model.Transaction{}, model.Invalid("transaction", "amount", "must be positive, got %s", p.Amount)
	}

	var txn model.Transaction
	err := s.store.Update(ctx, func(tx store.Tx) error {
		jt, err := tx.Template(p.TemplateID)
		if err != nil {
			return err
		}
		if !jt.Active {
			return model.Invalid("transaction", "template", "template %s is inactive", jt.ID)
		}

		lines, err := templates.Expand(jt, p.Amount, s.opts.Places)
		if err != nil {
			return err
		}

		txn = model.Transaction{
			ID:              id.New(id.PrefixTransaction),
			DocumentType:    jt.DocumentType,
			TemplateID:      jt.ID,
			TemplateVersion: jt.Version,
			Date:            model.Day(p.Date),
			Amount:          p.Amount,
			Description:     p.Description,
			Status:          model.TransactionDraft,
			Lines:           lines,
		}
		if status == model.TransactionDraft {
			stamp(&txn)
			if err := fold(ValidateLines(txn.Lines, txAccounts{tx}, txn.Date, s.opts.Places)); err != nil {
				return err
			}
			return tx.InsertTransaction(txn)
		}
		if err := s.commitPosted(tx, &txn); err != nil {
			return err
		}
		return tx.InsertTransaction(txn)
	})
	if err != nil {
		s.logFailure("post", p.TemplateID, err)
		return model.Transaction{}, err
	}

	s.logDone(txn)
	return txn, nil
}

// commitPosted validates txn, numbers it and marks it POSTED. Numbering
// happens last so a rejected transaction never consumes a number.
func (s *Service) commitPosted(tx store.Tx, txn *model.Transaction) error {
	stamp(txn)
	if err := fold(ValidateLines(txn.Lines, txAccounts{tx}, txn.Date, s.opts.Places)); err != nil {
		return err
	}
	num, _, err := sequence.Next(tx, txn.DocumentType, txn.Date.Year())
	if err != nil {
		return err
	}
	txn.DocumentNumber = num
	txn.Status = model.TransactionPosted
	txn.PostedAt = s.now().UTC()
	stamp(txn)
	return nil
}

// stamp copies transaction fields onto its lines.
func stamp(txn *model.Transaction) {
	for i := range txn.Lines {
		l := &txn.Lines[i]
		l.TransactionID = txn.ID
		l.LineNo = i + 1
		l.Date = txn.Date
		l.DocumentNumber = txn.DocumentNumber
		if l.Description == "" {
			l.Description = txn.Description
		}
	}
}

// PostManual posts explicit balanced lines without a template, such as
// opening balances and adjustments.
func (s *Service) PostManual(ctx context.Context, p ManualParams) (model.Transaction, error) {
	if p.Date.IsZero() {
		return model.Transaction{}, model.Invalid("transaction", "date", "required")
	}
	docType := p.DocumentType
	if docType == "" {
		docType = s.opts.DefaultDocumentType
	}

	txn := model.Transaction{
		ID:           id.New(id.PrefixTransaction),
		DocumentType: docType,
		Date:         model.Day(p.Date),
		Description:  p.Description,
		Status:       model.TransactionDraft,
	}
	amount := decimal.Zero
	for _, l := range p.Lines {
		txn.Lines = append(txn.Lines, model.JournalEntry{
			AccountCode: l.AccountCode,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		})
		amount = amount.Add(l.Debit)
	}
	txn.Amount = amount

	err := s.store.Update(ctx, func(tx store.Tx) error {
		if err := s.commitPosted(tx, &txn); err != nil {
			return err
		}
		return tx.InsertTransaction(txn)
	})
	if err != nil {
		s.logFailure("post manual", docType, err)
		return model.Transaction{}, err
	}

	s.logDone(txn)
	return txn, nil
}

// PostDraft posts a DRAFT. Template drafts are re-expanded with the
// template's current version.
func (s *Service) PostDraft(ctx context.Context, transactionID string) (model.Transaction, error) {
	var txn model.Transaction
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		txn, err = tx.Transaction(transactionID)
		if err != nil {
			return err
		}
		if txn.Status != model.TransactionDraft {
			return &model.StateError{Entity: "transaction", ID: txn.ID, Current: string(txn.Status), Expected: string(model.TransactionDraft)}
		}

		if txn.TemplateID != "" {
			jt, err := tx.Template(txn.TemplateID)
			if err != nil {
				return err
			}
			if !jt.Active {
				return model.Invalid("transaction", "template", "template %s is inactive", jt.ID)
			}
			lines, err := templates.Expand(jt, txn.Amount, s.opts.Places)
			if err != nil {
				return err
			}
			txn.Lines = lines
			txn.TemplateVersion = jt.Version
			txn.DocumentType = jt.DocumentType
		}

		if err := s.commitPosted(tx, &txn); err != nil {
			return err
		}
		return tx.UpdateTransaction(txn)
	})
	if err != nil {
		s.logFailure("post draft", transactionID, err)
		return model.Transaction{}, err
	}

	s.logDone(txn)
	return txn, nil
}

// DeleteDraft removes a DRAFT. Posted transactions are voided, never deleted.
func (s *Service) DeleteDraft(ctx context.Context, transactionID string) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.DeleteTransaction(transactionID)
	})
	if err != nil {
		return err
	}
	s.log.Info("draft deleted", zap.String("transaction_id", transactionID))
	return nil
}

// Void marks a POSTED transaction VOID. Its lines stay untouched and drop
// out of every balance.
func (s *Service) Void(ctx context.Context, transactionID, reason, notes string) (model.Transaction, error) {
	if strings.TrimSpace(reason) == "" {
		return model.Transaction{}, model.Invalid("transaction", "void_reason", "required")
	}

	var txn model.Transaction
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		txn, err = tx.Transaction(transactionID)
		if err != nil {
			return err
		}
		if txn.Status != model.TransactionPosted {
			return &model.StateError{Entity: "transaction", ID: txn.ID, Current: string(txn.Status), Expected: string(model.TransactionPosted)}
		}
		if txn.ReconciliationID != "" {
			return &model.StateError{Entity: "transaction", ID: txn.ID,
				Current: "matched in " + txn.ReconciliationID, Expected: "unmatched"}
		}
		txn.Status = model.TransactionVoid
		txn.VoidReason = reason
		txn.VoidNotes = notes
		txn.VoidedAt = s.now().UTC()
		return tx.UpdateTransaction(txn)
	})
	if err != nil {
		s.logFailure("void", transactionID, err)
		return model.Transaction{}, err
	}

	s.log.Info("transaction voided",
		zap.String("transaction_id", txn.ID),
		zap.String("document_number", txn.DocumentNumber),
		zap.String("reason", reason))
	return txn, nil
}

// Get returns a transaction with its lines.
func (s *Service) Get(ctx context.Context, transactionID string) (model.Transaction, error) {
	var txn model.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		txn, err = tx.Transaction(transactionID)
		return err
	})
	return txn, err
}

// List returns transactions matching f, ordered by date and document number.
func (s *Service) List(ctx context.Context, f store.TransactionFilter) ([]model.Transaction, error) {
	var out []model.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.Transactions(f)
		return err
	})
	return out, err
}

func (s *Service) logDone(txn model.Transaction) {
	debit, _ := txn.Totals()
	s.log.Info("transaction recorded",
		zap.String("transaction_id", txn.ID),
		zap.String("document_number", txn.DocumentNumber),
		zap.String("status", string(txn.Status)),
		zap.String("date", txn.Date.Format(model.DateFormat)),
		zap.String("total", debit.String()),
		zap.Int("lines", len(txn.Lines)))
}

func (s *Service) logFailure(op, ref string, err error) {
	if errors.Is(err, model.ErrIntegrity) {
		s.log.Error("ledger integrity violation", zap.String("op", op), zap.String("ref", ref), zap.Error(err))
		return
	}
	s.log.Debug("operation rejected", zap.String("op", op), zap.String("ref", ref), zap.Error(err))
}

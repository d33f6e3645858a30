// Package sequence issues document numbers. Each (document type, year) key
// owns one counter row; a number is read, incremented and written back
// inside the caller's unit of work, so it is consumed only if that unit
// commits and a rolled-back posting leaves no gap.
package sequence

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

var docTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(-[A-Z0-9]+)*$`)

// ValidateDocumentType checks a document type such as "CS" or "BANK-FEE".
func ValidateDocumentType(docType string) error {
	if !docTypePattern.MatchString(docType) {
		return model.Invalid("sequence", "document_type", "%q must be upper-case letters and digits", docType)
	}
	return nil
}

// ValidateKey checks a (document type, year) pair.
func ValidateKey(docType string, year int) error {
	if err := ValidateDocumentType(docType); err != nil {
		return err
	}
	if year < 1900 || year > 9999 {
		return model.Invalid("sequence", "year", "%d out of range", year)
	}
	return nil
}

// Next allocates the next number for (docType, year) within tx and returns
// it with its formatted document number.
func Next(tx store.Tx, docType string, year int) (string, int64, error) {
	if err := ValidateKey(docType, year); err != nil {
		return "", 0, err
	}
	n, err := tx.NextSequence(docType, year)
	if err != nil {
		return "", 0, fmt.Errorf("allocating %s/%d: %w", docType, year, err)
	}
	return id.FormatDocumentNumber(docType, year, n), n, nil
}

// Allocator hands out numbers in their own unit of work.
type Allocator struct {
	store store.Store
	log   *zap.Logger
}

// NewAllocator returns an Allocator over s.
func NewAllocator(s store.Store, log *zap.Logger) *Allocator {
	return &Allocator{store: s, log: log}
}

// Allocate reserves and returns the next number for (docType, year).
func (a *Allocator) Allocate(ctx context.Context, docType string, year int) (int64, error) {
	var n int64
	err := a.store.Update(ctx, func(tx store.Tx) error {
		var err error
		_, n, err = Next(tx, docType, year)
		return err
	})
	if err != nil {
		return 0, err
	}
	a.log.Debug("sequence allocated",
		zap.String("document_type", docType), zap.Int("year", year), zap.Int64("number", n))
	return n, nil
}

// Current returns the last number issued for (docType, year), or 0.
func (a *Allocator) Current(ctx context.Context, docType string, year int) (int64, error) {
	if err := ValidateKey(docType, year); err != nil {
		return 0, err
	}
	var n int64
	err := a.store.View(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.CurrentSequence(docType, year)
		return err
	})
	return n, err
}

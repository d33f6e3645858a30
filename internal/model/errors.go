package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every ValidationError and UnbalancedTemplateError.
	ErrValidation = errors.New("validation failed")
	// ErrState matches every StateError.
	ErrState = errors.New("invalid state")
	// ErrIntegrity matches every IntegrityError.
	ErrIntegrity = errors.New("integrity violation")
)

// NotFoundError reports a reference to a nonexistent entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError is input rejected before any persistence.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(entity, field, format string, args ...any) error {
	return &ValidationError{Entity: entity, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnbalancedTemplateError means a template's evaluated lines do not balance
// for some amount. It is an authoring defect and is never corrected silently.
type UnbalancedTemplateError struct {
	TemplateID string
	Amount     decimal.Decimal
	Debit      decimal.Decimal
	Credit     decimal.Decimal
}

func (e *UnbalancedTemplateError) Error() string {
	return fmt.Sprintf("template %q unbalanced for amount %s: debits %s != credits %s",
		e.TemplateID, e.Amount.String(), e.Debit.String(), e.Credit.String())
}

func (e *UnbalancedTemplateError) Is(target error) bool { return target == ErrValidation }

// StateError is an operation attempted from the wrong lifecycle state. The
// entity is left unchanged.
type StateError struct {
	Entity   string
	ID       string
	Current  string
	Expected string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %q is %s, expected %s", e.Entity, e.ID, e.Current, e.Expected)
}

func (e *StateError) Is(target error) bool { return target == ErrState }

// IntegrityError signals a broken storage invariant, such as a duplicate
// document number. It indicates a locking defect and is never user-correctable.
type IntegrityError struct {
	Op     string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation in %s: %s", e.Op, e.Detail)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

package domain

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these so callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrIntegrity  = errors.New("data integrity violation")
	ErrProvider   = errors.New("external provider failure")
)

var (
	ErrProductNotFound   = fmt.Errorf("product %w", ErrNotFound)
	ErrVariantNotFound   = fmt.Errorf("variant %w", ErrNotFound)
	ErrPromotionNotFound = fmt.Errorf("promotion %w", ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("order %w", ErrNotFound)
	ErrCartLineNotFound  = fmt.Errorf("cart line %w", ErrNotFound)
	ErrAccountNotFound   = fmt.Errorf("loyalty account %w", ErrNotFound)
	ErrBrandNotFound     = fmt.Errorf("brand %w", ErrNotFound)
	ErrCategoryNotFound  = fmt.Errorf("category %w", ErrNotFound)

	ErrStaleOrder    = fmt.Errorf("order was modified by someone else, reload and retry: %w", ErrConflict)
	ErrDuplicateName = fmt.Errorf("name already exists: %w", ErrConflict)
	ErrEmptyCart     = fmt.Errorf("cart is empty: %w", ErrValidation)
)

// ValidationError names the entity and field that failed a business rule.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(entity, field, message string) error {
	return &ValidationError{Entity: entity, Field: field, Message: message}
}

// StockError is returned when a cart line cannot be fulfilled.
type StockError struct {
	Product    string
	Requested  int
	Available  int
	OutOfStock bool
}

func (e *StockError) Error() string {
	if e.OutOfStock {
		return fmt.Sprintf("product %q is out of stock", e.Product)
	}
	return fmt.Sprintf("product %q: insufficient stock (requested %d, available %d)", e.Product, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrValidation }

// TransitionError is returned for an order status change outside the transition table.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order status transition %s -> %s is not allowed", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrValidation }

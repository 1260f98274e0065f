package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRequest      = errors.New("duplicate request")
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrTooManyAttempts       = errors.New("too many login attempts")
	ErrInvalidInput          = errors.New("invalid input")
)

// ProductNotFoundError reports a line item whose product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientInventoryError reports a line item asking for more than the
// product has left. Available is the inventory seen by the failed check.
type InsufficientInventoryError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// InvalidInputError is a business rule violation on caller supplied data.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

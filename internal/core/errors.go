package core

import "fmt"

// ValidationError reports malformed or out-of-range input. It is always raised
// before any write reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing row, or a row that exists but is not in the
// state the operation requires (e.g. updating a soft-deleted product).
type NotFoundError struct {
	Entity string
	ID     int
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %d not found: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func productNotFound(id int, reason string) *NotFoundError {
	return &NotFoundError{Entity: "product", ID: id, Reason: reason}
}

func orderNotFound(id int) *NotFoundError {
	return &NotFoundError{Entity: "order", ID: id}
}

// InsufficientStockError names the product that cannot cover a requested quantity.
type InsufficientStockError struct {
	ProductID   int
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// ConflictError reports an operation blocked by other rows that depend on the target.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrEmptyCart is returned when the submitted cart has no lines.
var ErrEmptyCart = errors.New("cart is empty")

// UnknownProductError indicates a cart line references a product that does
// not exist in the catalog.
type UnknownProductError struct {
	Ref ProductRef
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %s does not exist", e.Ref)
}

// PriceMismatchError indicates the client-claimed price differs from the
// catalog price. Both prices are reported so tampering attempts are visible
// in one message.
type PriceMismatchError struct {
	ProductID int
	Name      string
	Claimed   decimal.Decimal
	Actual    decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch for %s (product %d): claimed %s, actual %s",
		e.Name, e.ProductID, e.Claimed, e.Actual)
}

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// InsufficientStockError indicates the requested quantity exceeds available
// stock.
type InsufficientStockError struct {
	ProductID int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ValidationErrors aggregates every failing cart line. The whole cart is
// rejected when any line fails, but all problems are reported together so
// the client can fix them in one round trip.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return "cart validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual line errors to errors.Is/As.
func (v ValidationErrors) Unwrap() []error {
	return v
}

// Messages returns the individual error strings for the HTTP error list.
func (v ValidationErrors) Messages() []string {
	msgs := make([]string, len(v))
	for i, err := range v {
		msgs[i] = err.Error()
	}
	return msgs
}

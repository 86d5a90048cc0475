// Package checkout converts an untrusted client cart into an authoritative
// order, or a precise list of rejections. Client-claimed prices are compared
// against the catalog with strict equality: a mismatch means tampering (or a
// stale client cache) and rejects the whole cart.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmolner/tienda-moda/internal/domain/catalog"
	"github.com/dmolner/tienda-moda/internal/domain/token"
)

// OrderLine is one validated order entry. Price and subtotal come from the
// catalog, never from the client.
type OrderLine struct {
	ProductID int             `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is the authoritative result of a successful cart validation.
// Immutable once returned.
type Order struct {
	ID           string          `json:"id"`
	CustomerID   int             `json:"customerId"`
	CustomerName string          `json:"customer"`
	Lines        []OrderLine     `json:"products"`
	Total        decimal.Decimal `json:"total"`
}

// Service validates carts against the authoritative catalog.
type Service struct {
	catalog *catalog.Store
	now     func() time.Time
}

// NewService creates a checkout Service backed by the given catalog.
func NewService(cs *catalog.Store) *Service {
	return &Service{
		catalog: cs,
		now:     time.Now,
	}
}

// Validate checks every cart line in submission order and either returns the
// authoritative order or a ValidationErrors listing every failing line.
// Validation is stateless: the same cart against the same catalog always
// produces the same outcome (order ids differ per call).
func (s *Service) Validate(_ context.Context, customer token.Claims, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	var (
		errs      ValidationErrors
		validated = make([]OrderLine, 0, len(lines))
		total     = decimal.Zero
	)

	for _, line := range lines {
		p, ok := s.catalog.ByID(line.Ref.ID)
		if !ok {
			errs = append(errs, &UnknownProductError{Ref: line.Ref})
			continue
		}

		// Strict equality, no epsilon. Prices travel as decimals end to
		// end, so two JSON literals are equal iff they denote the same
		// number.
		if !line.Price.Equal(p.Price) {
			errs = append(errs, &PriceMismatchError{
				ProductID: p.ID,
				Name:      p.Name,
				Claimed:   line.Price,
				Actual:    p.Price,
			})
			continue
		}

		if line.Quantity < 1 {
			errs = append(errs, &InvalidQuantityError{ProductID: p.ID})
			continue
		}

		if line.Quantity > p.Stock {
			errs = append(errs, &InsufficientStockError{
				ProductID: p.ID,
				Requested: line.Quantity,
				Available: p.Stock,
			})
			continue
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)

		// The display name keeps the client's variant-qualified form
		// ("Camiseta (Rojo, M)") when given; the catalog name is the
		// fallback. Pricing never uses it.
		name := line.Name
		if name == "" {
			name = p.Name
		}

		validated = append(validated, OrderLine{
			ProductID: p.ID,
			Name:      name,
			Price:     p.Price,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Order{
		ID:           s.orderID(customer.UserID),
		CustomerID:   customer.UserID,
		CustomerName: customer.DisplayName,
		Lines:        validated,
		Total:        total.Round(2),
	}, nil
}

// orderID builds a per-call unique order identifier from the wall clock and
// the customer id.
func (s *Service) orderID(userID int) string {
	return fmt.Sprintf("ORD-%d-%d", s.now().UnixMilli(), userID)
}

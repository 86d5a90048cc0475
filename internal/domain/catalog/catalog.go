// Package catalog holds the authoritative product catalog. It is loaded once
// at startup and never mutated afterwards, so lookups are safe under
// unlimited concurrency without locking. Prices and stock here are the only
// source of truth at checkout time.
package catalog

import "github.com/shopspring/decimal"

// Product is a purchasable catalog item.
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  int             `json:"categoryId"`
	Featured    bool            `json:"featured"`
	Sizes       []string        `json:"sizes,omitempty"`
	Colors      []string        `json:"colors,omitempty"`
	Image       string          `json:"image,omitempty"`
}

// Category groups products for browsing.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Store is the immutable in-memory catalog.
type Store struct {
	categories []Category
	products   []Product
	byID       map[int]*Product
}

// NewStore builds a Store from already-loaded data. The slices are not
// copied; callers must not mutate them afterwards.
func NewStore(categories []Category, products []Product) *Store {
	byID := make(map[int]*Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &Store{
		categories: categories,
		products:   products,
		byID:       byID,
	}
}

// ByID returns the product with the given id.
func (s *Store) ByID(id int) (*Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// Products returns all products.
func (s *Store) Products() []Product {
	return s.products
}

// Categories returns all categories.
func (s *Store) Categories() []Category {
	return s.categories
}

// Featured returns the products flagged for the storefront landing page.
func (s *Store) Featured() []Product {
	var out []Product
	for _, p := range s.products {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// ByCategory returns the products belonging to the given category.
func (s *Store) ByCategory(categoryID int) []Product {
	var out []Product
	for _, p := range s.products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of products in the catalog.
func (s *Store) Len() int {
	return len(s.products)
}

// Snapshot is the full catalog in the shape the front end caches client-side
// after login. Featured repeats the flagged products so the landing page
// renders without filtering.
type Snapshot struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
	Featured   []Product  `json:"featured"`
}

// Snapshot returns the catalog snapshot sent with the login response.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Categories: s.categories,
		Products:   s.products,
		Featured:   s.Featured(),
	}
}

// Package catalog reads product and order records from the storefront.
// The storefront subsystem is optional: Provider.Available reports whether
// a backend is configured, and product- or order-dependent event builders
// silently no-op when it is not.
package catalog

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by providers with no configured backend.
var ErrUnavailable = errors.New("catalog is not available")

// ErrNotFound is returned when a product or order does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Product is one storefront product record. Amounts are decimal strings as
// stored; the tracker reduces them to floats at the JSON boundary.
type Product struct {
	ID         string
	Name       string
	SKU        string
	Brand      string
	Price      string
	MinVariant string // lowest variant price; empty for simple products
	Categories []string
}

// EffectivePrice is the price reported for the product: the minimum variant
// price for multi-variant products, else the base price.
func (p *Product) EffectivePrice() string {
	if p.MinVariant != "" {
		return p.MinVariant
	}
	return p.Price
}

// Billing is the customer identity recorded on an order. Values are raw;
// hashing happens in the tracker.
type Billing struct {
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderLine is one purchased line item.
type OrderLine struct {
	ProductID string
	Quantity  int
	LineTotal string
}

// Order is one completed storefront order.
type Order struct {
	ID         string
	Currency   string
	Total      string
	CustomerIP string
	Billing    Billing
	Lines      []OrderLine
}

// Provider is the capability interface for the storefront catalog.
type Provider interface {
	// Available reports whether a catalog backend is configured.
	Available() bool
	Product(ctx context.Context, id string) (*Product, error)
	Order(ctx context.Context, id string) (*Order, error)
}

// NopProvider is the Provider used when no catalog database is configured.
type NopProvider struct{}

func (NopProvider) Available() bool { return false }

func (NopProvider) Product(context.Context, string) (*Product, error) {
	return nil, ErrUnavailable
}

func (NopProvider) Order(context.Context, string) (*Order, error) {
	return nil, ErrUnavailable
}

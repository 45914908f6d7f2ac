// Package money provides exact decimal arithmetic for storefront amounts.
// Prices travel through the relay as decimal strings (the way the catalog
// database stores them) and are only reduced to floats at the JSON boundary.
package money

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// ctx is the shared arithmetic context. 25 digits is far beyond any
// storefront total.
var ctx = apd.BaseContext.WithPrecision(25)

// Parse converts a decimal string to an amount. Empty input parses as zero.
func Parse(s string) (*apd.Decimal, error) {
	if s == "" {
		return apd.New(0, 0), nil
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// Zero returns a fresh zero amount.
func Zero() *apd.Decimal {
	return apd.New(0, 0)
}

// Add accumulates x into total in place.
func Add(total, x *apd.Decimal) error {
	_, err := ctx.Add(total, total, x)
	return err
}

// Unit returns total divided by qty: the per-item price of a line whose
// stored amount is the line total.
func Unit(total *apd.Decimal, qty int) (*apd.Decimal, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("unit price: quantity %d", qty)
	}
	var out apd.Decimal
	if _, err := ctx.Quo(&out, total, apd.New(int64(qty), 0)); err != nil {
		return nil, err
	}
	return &out, nil
}

// Round reduces an amount to a float64 rounded to two decimal places, the
// form the ingestion API expects for value and item_price fields.
func Round(d *apd.Decimal) (float64, error) {
	var q apd.Decimal
	if _, err := ctx.Quantize(&q, d, -2); err != nil {
		return 0, err
	}
	f, err := q.Float64()
	if err != nil {
		return 0, err
	}
	return f, nil
}

// Value parses a decimal string and rounds it in one step.
func Value(s string) (float64, error) {
	d, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return Round(d)
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresProvider reads the storefront's product and order tables. The
// connection is read-only in practice: the relay never writes storefront
// data.
type PostgresProvider struct {
	db *sql.DB
}

var _ Provider = (*PostgresProvider)(nil)

// NewPostgres opens a connection to the storefront database.
func NewPostgres(databaseURL string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog database: %w", err)
	}

	return &PostgresProvider{db: db}, nil
}

// NewPostgresFromDB wraps an existing connection (used by tests).
func NewPostgresFromDB(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Available() bool { return true }

// Close closes the underlying connection.
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

func (p *PostgresProvider) Product(ctx context.Context, id string) (*Product, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(sku, ''), price::text
		FROM products WHERE id = $1`, id)

	var prod Product
	if err := row.Scan(&prod.ID, &prod.Name, &prod.SKU, &prod.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}

	minVariant, err := p.minVariantPrice(ctx, id)
	if err != nil {
		return nil, err
	}
	prod.MinVariant = minVariant

	categories, err := p.productCategories(ctx, id)
	if err != nil {
		return nil, err
	}
	prod.Categories = categories

	brand, err := p.productBrand(ctx, id)
	if err != nil {
		return nil, err
	}
	prod.Brand = brand

	return &prod, nil
}

// minVariantPrice returns the lowest variant price, or "" for products
// without variants.
func (p *PostgresProvider) minVariantPrice(ctx context.Context, id string) (string, error) {
	var minPrice sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT MIN(price)::text FROM product_variants WHERE product_id = $1`, id,
	).Scan(&minPrice)
	if err != nil {
		return "", fmt.Errorf("query variant prices for %s: %w", id, err)
	}
	return minPrice.String, nil
}

func (p *PostgresProvider) productCategories(ctx context.Context, id string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT name FROM product_categories WHERE product_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("query categories for %s: %w", id, err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, name)
	}
	return categories, rows.Err()
}

// productBrand resolves the brand with the storefront's precedence: a
// taxonomy attribute first, then a custom meta field, first match wins.
func (p *PostgresProvider) productBrand(ctx context.Context, id string) (string, error) {
	var brand sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT value FROM product_attributes
		WHERE product_id = $1 AND name IN ('brand', 'product_brand')
		ORDER BY name LIMIT 1`, id,
	).Scan(&brand)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("query brand attribute for %s: %w", id, err)
	}
	if brand.String != "" {
		return brand.String, nil
	}

	err = p.db.QueryRowContext(ctx, `
		SELECT value FROM product_meta
		WHERE product_id = $1 AND key IN ('_brand', 'brand', '_product_brand', 'product_brand')
		ORDER BY key LIMIT 1`, id,
	).Scan(&brand)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("query brand meta for %s: %w", id, err)
	}
	return brand.String, nil
}

func (p *PostgresProvider) Order(ctx context.Context, id string) (*Order, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, currency, total::text, COALESCE(customer_ip, ''),
			COALESCE(billing_email, ''), COALESCE(billing_first_name, ''),
			COALESCE(billing_last_name, ''), COALESCE(billing_phone, ''),
			COALESCE(billing_city, ''), COALESCE(billing_state, ''),
			COALESCE(billing_postcode, ''), COALESCE(billing_country, '')
		FROM orders WHERE id = $1`, id)

	var o Order
	err := row.Scan(&o.ID, &o.Currency, &o.Total, &o.CustomerIP,
		&o.Billing.Email, &o.Billing.FirstName, &o.Billing.LastName,
		&o.Billing.Phone, &o.Billing.City, &o.Billing.State,
		&o.Billing.PostalCode, &o.Billing.Country)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query order %s: %w", id, err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT product_id, quantity, line_total::text
		FROM order_lines WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query order lines for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

package billing

import (
	"context"
	"fmt"
	"strings"
)

const customerColumns = `id, tenant_id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(document, ''), COALESCE(reseller_id::text, ''), status, created_at`

func scanCustomer(row interface{ Scan(dest ...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.Document, &c.ResellerID, &c.Status, &c.CreatedAt)
	return c, err
}

// CreateCustomer inserts an active customer. For a reseller actor the
// caller sets ResellerID so the record is attributed to them.
func (s *PostgresStore) CreateCustomer(ctx context.Context, tenantID string, in NewCustomer) (Customer, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Customer{}, fmt.Errorf("billing: customer name required")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO customers (tenant_id, name, email, phone, document, reseller_id, status)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, '')::uuid, 'active')
		RETURNING `+customerColumns,
		tenantID, strings.TrimSpace(in.Name), in.Email, in.Phone, in.Document, in.ResellerID,
	)
	c, err := scanCustomer(row)
	if err != nil {
		return Customer{}, fmt.Errorf("billing: create customer: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, tenantID, customerID string) (Customer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, customerID)
	c, err := scanCustomer(row)
	if err != nil {
		return Customer{}, notFound(err)
	}
	return c, nil
}

// FindCustomersByName returns customers whose name contains the given text,
// case-insensitively, exact matches first. The text is matched literally, so
// LIKE wildcards in model output match nothing special.
func (s *PostgresStore) FindCustomersByName(ctx context.Context, tenantID, name string) ([]Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE tenant_id = $1 AND strpos(lower(name), lower($2)) > 0
		ORDER BY (lower(name) = lower($2)) DESC, name
		LIMIT 10
	`, tenantID, name)
	if err != nil {
		return nil, fmt.Errorf("billing: find customers: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

// ListCustomers lists the tenant's customers. A non-empty resellerID
// restricts the list to that reseller's customers.
func (s *PostgresStore) ListCustomers(ctx context.Context, tenantID, resellerID string, limit int) ([]Customer, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE tenant_id = $1 AND ($2 = '' OR reseller_id::text = $2)
		ORDER BY name
		LIMIT $3
	`, tenantID, resellerID, limit)
	if err != nil {
		return nil, fmt.Errorf("billing: list customers: %w", err)
	}
	defer rows.Close()
	return collectCustomers(rows)
}

func collectCustomers(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Customer, error) {
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("billing: scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

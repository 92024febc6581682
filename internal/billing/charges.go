package billing

import (
	"context"
	"fmt"
	"strings"
)

const chargeSelect = `
	SELECT ch.id, ch.tenant_id, ch.customer_id, c.name, ch.amount::float8, ch.due_date, ch.status, COALESCE(ch.description, ''), ch.paid_at
	FROM charges ch
	JOIN customers c ON c.id = ch.customer_id AND c.tenant_id = ch.tenant_id
`

func scanCharge(row interface{ Scan(dest ...any) error }) (Charge, error) {
	var ch Charge
	err := row.Scan(&ch.ID, &ch.TenantID, &ch.CustomerID, &ch.CustomerName, &ch.Amount, &ch.DueDate, &ch.Status, &ch.Description, &ch.PaidAt)
	return ch, err
}

// CreateCharge inserts a pending charge for a customer of the same tenant.
func (s *PostgresStore) CreateCharge(ctx context.Context, tenantID string, in NewCharge) (Charge, error) {
	if in.Amount <= 0 {
		return Charge{}, fmt.Errorf("billing: charge amount must be positive")
	}
	customer, err := s.GetCustomer(ctx, tenantID, in.CustomerID)
	if err != nil {
		return Charge{}, err
	}

	var ch Charge
	err = s.db.QueryRow(ctx, `
		INSERT INTO charges (tenant_id, customer_id, amount, due_date, status, description)
		VALUES ($1, $2, $3, $4, 'pending', NULLIF($5, ''))
		RETURNING id, tenant_id, customer_id, amount::float8, due_date, status, COALESCE(description, ''), paid_at
	`, tenantID, in.CustomerID, in.Amount, in.DueDate, strings.TrimSpace(in.Description)).Scan(
		&ch.ID, &ch.TenantID, &ch.CustomerID, &ch.Amount, &ch.DueDate, &ch.Status, &ch.Description, &ch.PaidAt,
	)
	if err != nil {
		return Charge{}, fmt.Errorf("billing: create charge: %w", err)
	}
	ch.CustomerName = customer.Name
	return ch, nil
}

func (s *PostgresStore) GetCharge(ctx context.Context, tenantID, chargeID string) (Charge, error) {
	ch, err := scanCharge(s.db.QueryRow(ctx, chargeSelect+` WHERE ch.tenant_id = $1 AND ch.id = $2`, tenantID, chargeID))
	if err != nil {
		return Charge{}, notFound(err)
	}
	return ch, nil
}

// MarkChargePaid settles a pending charge.
func (s *PostgresStore) MarkChargePaid(ctx context.Context, tenantID, chargeID string) (Charge, error) {
	return s.transitionCharge(ctx, tenantID, chargeID, `status = 'paid', paid_at = now()`)
}

// CancelCharge cancels a pending charge.
func (s *PostgresStore) CancelCharge(ctx context.Context, tenantID, chargeID string) (Charge, error) {
	return s.transitionCharge(ctx, tenantID, chargeID, `status = 'cancelled'`)
}

// PostponeCharge moves the due date of a pending charge forward by days.
func (s *PostgresStore) PostponeCharge(ctx context.Context, tenantID, chargeID string, days int) (Charge, error) {
	if days <= 0 {
		return Charge{}, fmt.Errorf("billing: postpone days must be positive")
	}
	return s.transitionCharge(ctx, tenantID, chargeID, fmt.Sprintf(`due_date = due_date + %d`, days))
}

func (s *PostgresStore) transitionCharge(ctx context.Context, tenantID, chargeID, set string) (Charge, error) {
	tag, err := s.db.Exec(ctx, `UPDATE charges SET `+set+` WHERE tenant_id = $1 AND id = $2 AND status = 'pending'`, tenantID, chargeID)
	if err != nil {
		return Charge{}, fmt.Errorf("billing: update charge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, lookupErr := s.GetCharge(ctx, tenantID, chargeID)
		if lookupErr != nil {
			return Charge{}, lookupErr
		}
		return existing, fmt.Errorf("%w: charge is %s", ErrInvalidState, existing.Status)
	}
	return s.GetCharge(ctx, tenantID, chargeID)
}

// ListCharges returns charges ordered by due date.
func (s *PostgresStore) ListCharges(ctx context.Context, tenantID string, f ChargeFilter) ([]Charge, error) {
	where := []string{"ch.tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("ch.status = $%d", f.Status)
	}
	if f.CustomerID != "" {
		add("ch.customer_id::text = $%d", f.CustomerID)
	}
	if f.ResellerID != "" {
		add("c.reseller_id::text = $%d", f.ResellerID)
	}
	if f.OverdueOnly {
		where = append(where, "ch.status = 'pending'", "ch.due_date < CURRENT_DATE")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := chargeSelect + " WHERE " + strings.Join(where, " AND ") + fmt.Sprintf(" ORDER BY ch.due_date LIMIT $%d", len(args))
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("billing: list charges: %w", err)
	}
	defer rows.Close()

	var out []Charge
	for rows.Next() {
		ch, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("billing: scan charge: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

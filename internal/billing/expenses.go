package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ResolveCategory finds a category by case-insensitive name, creating it
// when the tenant has none with that name.
func (s *PostgresStore) ResolveCategory(ctx context.Context, tenantID, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("billing: category name required")
	}

	var c Category
	err := s.db.QueryRow(ctx, `
		SELECT id, tenant_id, name FROM expense_categories
		WHERE tenant_id = $1 AND lower(name) = lower($2)
	`, tenantID, name).Scan(&c.ID, &c.TenantID, &c.Name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Category{}, fmt.Errorf("billing: lookup category: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO expense_categories (tenant_id, name)
		VALUES ($1, $2)
		ON CONFLICT (tenant_id, lower(name)) DO UPDATE SET name = expense_categories.name
		RETURNING id, tenant_id, name
	`, tenantID, name).Scan(&c.ID, &c.TenantID, &c.Name)
	if err != nil {
		return Category{}, fmt.Errorf("billing: create category: %w", err)
	}
	return c, nil
}

// CreateExpense inserts a pending payable.
func (s *PostgresStore) CreateExpense(ctx context.Context, tenantID string, in NewExpense) (Expense, error) {
	if strings.TrimSpace(in.Description) == "" {
		return Expense{}, fmt.Errorf("billing: expense description required")
	}
	if in.Amount <= 0 {
		return Expense{}, fmt.Errorf("billing: expense amount must be positive")
	}

	var e Expense
	err := s.db.QueryRow(ctx, `
		INSERT INTO expenses (tenant_id, description, amount, due_date, category_id, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, 'pending')
		RETURNING id, tenant_id, description, amount::float8, due_date, COALESCE(category_id::text, ''), status, paid_at
	`, tenantID, strings.TrimSpace(in.Description), in.Amount, in.DueDate, in.CategoryID).Scan(
		&e.ID, &e.TenantID, &e.Description, &e.Amount, &e.DueDate, &e.CategoryID, &e.Status, &e.PaidAt,
	)
	if err != nil {
		return Expense{}, fmt.Errorf("billing: create expense: %w", err)
	}
	return e, nil
}

const expenseSelect = `
	SELECT e.id, e.tenant_id, e.description, e.amount::float8, e.due_date, COALESCE(e.category_id::text, ''), COALESCE(cat.name, ''), e.status, e.paid_at
	FROM expenses e
	LEFT JOIN expense_categories cat ON cat.id = e.category_id AND cat.tenant_id = e.tenant_id
`

func scanExpense(row interface{ Scan(dest ...any) error }) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.TenantID, &e.Description, &e.Amount, &e.DueDate, &e.CategoryID, &e.CategoryName, &e.Status, &e.PaidAt)
	return e, err
}

func (s *PostgresStore) GetExpense(ctx context.Context, tenantID, expenseID string) (Expense, error) {
	e, err := scanExpense(s.db.QueryRow(ctx, expenseSelect+` WHERE e.tenant_id = $1 AND e.id = $2`, tenantID, expenseID))
	if err != nil {
		return Expense{}, notFound(err)
	}
	return e, nil
}

// DeleteExpense removes an expense and returns the deleted row.
func (s *PostgresStore) DeleteExpense(ctx context.Context, tenantID, expenseID string) (Expense, error) {
	existing, err := s.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		return Expense{}, err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM expenses WHERE tenant_id = $1 AND id = $2`, tenantID, expenseID)
	if err != nil {
		return Expense{}, fmt.Errorf("billing: delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Expense{}, ErrNotFound
	}
	return existing, nil
}

// MarkExpensePaid settles a pending expense.
func (s *PostgresStore) MarkExpensePaid(ctx context.Context, tenantID, expenseID string) (Expense, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE expenses SET status = 'paid', paid_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'
	`, tenantID, expenseID)
	if err != nil {
		return Expense{}, fmt.Errorf("billing: mark expense paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, lookupErr := s.GetExpense(ctx, tenantID, expenseID)
		if lookupErr != nil {
			return Expense{}, lookupErr
		}
		return existing, fmt.Errorf("%w: expense is %s", ErrInvalidState, existing.Status)
	}
	return s.GetExpense(ctx, tenantID, expenseID)
}

// ListExpenses returns expenses ordered by due date. An empty status lists all.
func (s *PostgresStore) ListExpenses(ctx context.Context, tenantID, status string, limit int) ([]Expense, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, expenseSelect+`
		WHERE e.tenant_id = $1 AND ($2 = '' OR e.status = $2)
		ORDER BY e.due_date
		LIMIT $3
	`, tenantID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("billing: list expenses: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("billing: scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

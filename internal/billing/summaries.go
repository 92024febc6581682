package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// linkedID reports whether id can reference a row. Actor and customer ids
// arrive as free text on requests.
func linkedID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// OperatorSummary aggregates the tenant-wide figures shown to the operator.
func (s *PostgresStore) OperatorSummary(ctx context.Context, tenantID string) (OperatorSummary, error) {
	var out OperatorSummary
	query := `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE tenant_id = $1),
			(SELECT COUNT(DISTINCT reseller_id) FROM customers WHERE tenant_id = $1 AND reseller_id IS NOT NULL),
			(SELECT COUNT(*) FROM services WHERE tenant_id = $1 AND status = 'active'),
			(SELECT COALESCE(SUM(price), 0)::float8 FROM services WHERE tenant_id = $1 AND status = 'active'),
			(SELECT COUNT(*) FROM charges WHERE tenant_id = $1 AND status = 'pending' AND due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM charges WHERE tenant_id = $1 AND status = 'pending' AND due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM charges WHERE tenant_id = $1 AND status = 'paid' AND paid_at >= date_trunc('month', now()))
	`
	if err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&out.Customers,
		&out.Resellers,
		&out.ActiveServices,
		&out.RecurringRevenue,
		&out.OverdueCount,
		&out.OverdueTotal,
		&out.ReceivedMonth,
	); err != nil {
		return OperatorSummary{}, fmt.Errorf("billing: operator summary: %w", err)
	}

	services, err := s.expiringServices(ctx, tenantID, "", "")
	if err != nil {
		return OperatorSummary{}, err
	}
	out.ExpiringServices = services
	return out, nil
}

// AdminSummary aggregates receivables for an organization admin.
func (s *PostgresStore) AdminSummary(ctx context.Context, tenantID string) (AdminSummary, error) {
	var out AdminSummary
	query := `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE tenant_id = $1 AND status = 'active'),
			(SELECT COUNT(*) FROM charges WHERE tenant_id = $1 AND status = 'pending' AND due_date >= CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM charges WHERE tenant_id = $1 AND status = 'pending' AND due_date >= CURRENT_DATE),
			(SELECT COUNT(*) FROM charges WHERE tenant_id = $1 AND status = 'pending' AND due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM charges WHERE tenant_id = $1 AND status = 'pending' AND due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM charges WHERE tenant_id = $1 AND status = 'paid' AND paid_at >= date_trunc('month', now()))
	`
	if err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&out.ActiveCustomers,
		&out.PendingCount,
		&out.PendingTotal,
		&out.OverdueCount,
		&out.OverdueTotal,
		&out.ReceivedMonth,
	); err != nil {
		return AdminSummary{}, fmt.Errorf("billing: admin summary: %w", err)
	}

	overdue, err := s.overduePreview(ctx, tenantID, "")
	if err != nil {
		return AdminSummary{}, err
	}
	services, err := s.expiringServices(ctx, tenantID, "", "")
	if err != nil {
		return AdminSummary{}, err
	}
	out.OverduePreview = overdue
	out.ExpiringServices = services
	return out, nil
}

// ResellerSummary aggregates figures for the customers a reseller referred.
// A missing or malformed resellerID yields an empty summary.
func (s *PostgresStore) ResellerSummary(ctx context.Context, tenantID, resellerID string) (ResellerSummary, error) {
	var out ResellerSummary
	if !linkedID(resellerID) {
		return out, nil
	}
	query := `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE tenant_id = $1 AND reseller_id = $2),
			(SELECT COUNT(*) FROM charges ch JOIN customers c ON c.id = ch.customer_id AND c.tenant_id = ch.tenant_id
				WHERE ch.tenant_id = $1 AND c.reseller_id = $2 AND ch.status = 'pending' AND ch.due_date >= CURRENT_DATE),
			(SELECT COALESCE(SUM(ch.amount), 0)::float8 FROM charges ch JOIN customers c ON c.id = ch.customer_id AND c.tenant_id = ch.tenant_id
				WHERE ch.tenant_id = $1 AND c.reseller_id = $2 AND ch.status = 'pending' AND ch.due_date >= CURRENT_DATE),
			(SELECT COUNT(*) FROM charges ch JOIN customers c ON c.id = ch.customer_id AND c.tenant_id = ch.tenant_id
				WHERE ch.tenant_id = $1 AND c.reseller_id = $2 AND ch.status = 'pending' AND ch.due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(ch.amount), 0)::float8 FROM charges ch JOIN customers c ON c.id = ch.customer_id AND c.tenant_id = ch.tenant_id
				WHERE ch.tenant_id = $1 AND c.reseller_id = $2 AND ch.status = 'pending' AND ch.due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM reseller_commissions WHERE tenant_id = $1 AND reseller_id = $2 AND status = 'pending')
	`
	if err := s.db.QueryRow(ctx, query, tenantID, resellerID).Scan(
		&out.Customers,
		&out.PendingCount,
		&out.PendingTotal,
		&out.OverdueCount,
		&out.OverdueTotal,
		&out.CommissionBalance,
	); err != nil {
		return ResellerSummary{}, fmt.Errorf("billing: reseller summary: %w", err)
	}

	overdue, err := s.overduePreview(ctx, tenantID, resellerID)
	if err != nil {
		return ResellerSummary{}, err
	}
	services, err := s.expiringServices(ctx, tenantID, resellerID, "")
	if err != nil {
		return ResellerSummary{}, err
	}
	out.OverduePreview = overdue
	out.ExpiringServices = services
	return out, nil
}

// CustomerSummary reads only the given customer's own records. An empty or
// malformed customerID (actor without a billing identity) yields an empty
// summary.
func (s *PostgresStore) CustomerSummary(ctx context.Context, tenantID, customerID string) (CustomerSummary, error) {
	var out CustomerSummary
	if !linkedID(customerID) {
		return out, nil
	}

	query := `
		SELECT
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM charges WHERE tenant_id = $1 AND customer_id = $2 AND status = 'pending'),
			(SELECT COUNT(*) FROM charges WHERE tenant_id = $1 AND customer_id = $2 AND status = 'pending' AND due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM referral_credits WHERE tenant_id = $1 AND customer_id = $2 AND status = 'available')
	`
	if err := s.db.QueryRow(ctx, query, tenantID, customerID).Scan(
		&out.PendingTotal,
		&out.OverdueCount,
		&out.ReferralBalance,
	); err != nil {
		return CustomerSummary{}, fmt.Errorf("billing: customer summary: %w", err)
	}

	charges, err := s.ListCharges(ctx, tenantID, ChargeFilter{Status: ChargePending, CustomerID: customerID, Limit: previewLimit})
	if err != nil {
		return CustomerSummary{}, err
	}
	for _, ch := range charges {
		out.PendingCharges = append(out.PendingCharges, ChargePreview{
			ID:           ch.ID,
			CustomerName: ch.CustomerName,
			Amount:       ch.Amount,
			DueDate:      ch.DueDate,
		})
	}

	services, err := s.customerServices(ctx, tenantID, customerID)
	if err != nil {
		return CustomerSummary{}, err
	}
	out.ActiveServices = services
	return out, nil
}

// ExpenseSummary aggregates the tenant's payables.
func (s *PostgresStore) ExpenseSummary(ctx context.Context, tenantID string) (ExpenseSummary, error) {
	var out ExpenseSummary
	query := `
		SELECT
			(SELECT COUNT(*) FROM expenses WHERE tenant_id = $1 AND status = 'pending' AND due_date >= CURRENT_DATE),
			(SELECT COUNT(*) FROM expenses WHERE tenant_id = $1 AND status = 'pending' AND due_date < CURRENT_DATE),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM expenses WHERE tenant_id = $1
				AND due_date >= date_trunc('month', now()) AND due_date < date_trunc('month', now()) + interval '1 month'),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM expenses WHERE tenant_id = $1 AND status = 'paid' AND paid_at >= date_trunc('month', now()))
	`
	if err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&out.PendingCount,
		&out.OverdueCount,
		&out.MonthDueTotal,
		&out.MonthPaidTotal,
	); err != nil {
		return ExpenseSummary{}, fmt.Errorf("billing: expense summary: %w", err)
	}

	pending, err := s.expensePreview(ctx, tenantID, false)
	if err != nil {
		return ExpenseSummary{}, err
	}
	overdue, err := s.expensePreview(ctx, tenantID, true)
	if err != nil {
		return ExpenseSummary{}, err
	}
	out.Pending = pending
	out.Overdue = overdue
	return out, nil
}

func (s *PostgresStore) overduePreview(ctx context.Context, tenantID, resellerID string) ([]ChargePreview, error) {
	charges, err := s.ListCharges(ctx, tenantID, ChargeFilter{
		Status:      ChargePending,
		ResellerID:  resellerID,
		OverdueOnly: true,
		Limit:       previewLimit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ChargePreview, 0, len(charges))
	for _, ch := range charges {
		out = append(out, ChargePreview{ID: ch.ID, CustomerName: ch.CustomerName, Amount: ch.Amount, DueDate: ch.DueDate})
	}
	return out, nil
}

func (s *PostgresStore) expiringServices(ctx context.Context, tenantID, resellerID, customerID string) ([]ServicePreview, error) {
	query := `
		SELECT s.id, s.name, c.name, s.expires_at
		FROM services s
		JOIN customers c ON c.id = s.customer_id AND c.tenant_id = s.tenant_id
		WHERE s.tenant_id = $1
			AND s.status = 'active'
			AND s.expires_at >= CURRENT_DATE
			AND s.expires_at <= CURRENT_DATE + $2::int
			AND ($3 = '' OR c.reseller_id::text = $3)
			AND ($4 = '' OR c.id::text = $4)
		ORDER BY s.expires_at
		LIMIT 10
	`
	rows, err := s.db.Query(ctx, query, tenantID, expiringWindowDays, resellerID, customerID)
	if err != nil {
		return nil, fmt.Errorf("billing: expiring services: %w", err)
	}
	defer rows.Close()

	var out []ServicePreview
	for rows.Next() {
		var svc ServicePreview
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.CustomerName, &svc.ExpiresAt); err != nil {
			return nil, fmt.Errorf("billing: scan service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) customerServices(ctx context.Context, tenantID, customerID string) ([]ServicePreview, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, expires_at
		FROM services
		WHERE tenant_id = $1 AND customer_id = $2 AND status = 'active'
		ORDER BY expires_at
	`, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("billing: customer services: %w", err)
	}
	defer rows.Close()

	var out []ServicePreview
	for rows.Next() {
		var svc ServicePreview
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.ExpiresAt); err != nil {
			return nil, fmt.Errorf("billing: scan service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) expensePreview(ctx context.Context, tenantID string, overdue bool) ([]ExpensePreview, error) {
	cond := "due_date >= CURRENT_DATE"
	if overdue {
		cond = "due_date < CURRENT_DATE"
	}
	query := `
		SELECT id, description, amount::float8, due_date
		FROM expenses
		WHERE tenant_id = $1 AND status = 'pending' AND ` + cond + `
		ORDER BY due_date
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, tenantID, previewLimit)
	if err != nil {
		return nil, fmt.Errorf("billing: expense preview: %w", err)
	}
	defer rows.Close()

	var out []ExpensePreview
	for rows.Next() {
		var e ExpensePreview
		if err := rows.Scan(&e.ID, &e.Description, &e.Amount, &e.DueDate); err != nil {
			return nil, fmt.Errorf("billing: scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// KnowledgeBase returns the tenant's FAQ entries in display order.
func (s *PostgresStore) KnowledgeBase(ctx context.Context, tenantID string) ([]KnowledgeEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT question, answer
		FROM knowledge_entries
		WHERE tenant_id = $1 AND active
		ORDER BY position, created_at
		LIMIT 50
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing: knowledge base: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeEntry
	for rows.Next() {
		var k KnowledgeEntry
		if err := rows.Scan(&k.Question, &k.Answer); err != nil {
			return nil, fmt.Errorf("billing: scan knowledge: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

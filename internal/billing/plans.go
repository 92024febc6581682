package billing

import (
	"context"
	"fmt"
	"strings"
)

// ListPlans returns the tenant's active subscription plans by price.
func (s *PostgresStore) ListPlans(ctx context.Context, tenantID string) ([]Plan, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, price::float8, COALESCE(description, '')
		FROM plans
		WHERE tenant_id = $1 AND active
		ORDER BY price
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("billing: list plans: %w", err)
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description); err != nil {
			return nil, fmt.Errorf("billing: scan plan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateHandoff records a request for a human agent to take over the session.
func (s *PostgresStore) CreateHandoff(ctx context.Context, tenantID, sessionID, actorID, reason string) (Handoff, error) {
	h := Handoff{TenantID: tenantID, SessionID: sessionID, ActorID: actorID, Reason: strings.TrimSpace(reason)}
	err := s.db.QueryRow(ctx, `
		INSERT INTO human_handoffs (tenant_id, session_id, actor_id, reason)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at
	`, tenantID, sessionID, actorID, h.Reason).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return Handoff{}, fmt.Errorf("billing: create handoff: %w", err)
	}
	return h, nil
}

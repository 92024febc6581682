package assistant

import (
	"context"
	"fmt"

	"github.com/wolfman30/billing-assistant/internal/billing"
)

// Snapshot keys shared by the assembler, composer and alert engine.
const (
	keyCustomers         = "customers"
	keyResellers         = "resellers"
	keyActiveCustomers   = "active_customers"
	keyActiveServiceCnt  = "active_services_count"
	keyRecurringRevenue  = "recurring_revenue"
	keyPendingCount      = "pending_count"
	keyPendingTotal      = "pending_total"
	keyOverdueCount      = "overdue_count"
	keyOverdueTotal      = "overdue_total"
	keyReceivedMonth     = "received_month"
	keyCommissionBalance = "commission_balance"
	keyReferralBalance   = "referral_balance"
	keyOverduePreview    = "overdue_preview"
	keyPendingCharges    = "pending_charges"
	keyExpiringServices  = "expiring_services"
	keyActiveServices    = "active_services"

	keyExpensesPending       = "expenses_pending"
	keyExpensesOverdue       = "expenses_overdue"
	keyExpensesPendingCount  = "expenses_pending_count"
	keyExpensesOverdueCount  = "expenses_overdue_count"
	keyExpensesMonthDueTotal = "expenses_month_due_total"
	keyExpensesMonthPaid     = "expenses_month_paid_total"
)

// ContextSource is the read side of the business data store. Every method
// is scoped by tenantID.
type ContextSource interface {
	OperatorSummary(ctx context.Context, tenantID string) (billing.OperatorSummary, error)
	AdminSummary(ctx context.Context, tenantID string) (billing.AdminSummary, error)
	ResellerSummary(ctx context.Context, tenantID, resellerID string) (billing.ResellerSummary, error)
	CustomerSummary(ctx context.Context, tenantID, customerID string) (billing.CustomerSummary, error)
	ExpenseSummary(ctx context.Context, tenantID string) (billing.ExpenseSummary, error)
	KnowledgeBase(ctx context.Context, tenantID string) ([]billing.KnowledgeEntry, error)
}

// Profile is the tenant- and request-supplied text copied into the context.
type Profile struct {
	Personality         string
	BusinessDescription string
	BusinessHours       string
	MenuOptions         []MenuOption
}

// Assembler builds a ConversationContext for one request.
type Assembler struct {
	source ContextSource
}

func NewAssembler(source ContextSource) *Assembler {
	if source == nil {
		panic("assistant: context source required")
	}
	return &Assembler{source: source}
}

// Assemble runs the tier's query set plus the knowledge base and, for staff
// and resellers, the expense slice.
func (a *Assembler) Assemble(ctx context.Context, tenantID string, actor Actor, profile Profile) (ConversationContext, error) {
	snapshot := Snapshot{}

	switch actor.Tier {
	case TierOperator:
		s, err := a.source.OperatorSummary(ctx, tenantID)
		if err != nil {
			return ConversationContext{}, fmt.Errorf("assistant: assemble operator: %w", err)
		}
		snapshot[keyCustomers] = s.Customers
		snapshot[keyResellers] = s.Resellers
		snapshot[keyActiveServiceCnt] = s.ActiveServices
		snapshot[keyRecurringRevenue] = s.RecurringRevenue
		snapshot[keyOverdueCount] = s.OverdueCount
		snapshot[keyOverdueTotal] = s.OverdueTotal
		snapshot[keyReceivedMonth] = s.ReceivedMonth
		snapshot[keyExpiringServices] = nonNil(s.ExpiringServices)
	case TierAdmin:
		s, err := a.source.AdminSummary(ctx, tenantID)
		if err != nil {
			return ConversationContext{}, fmt.Errorf("assistant: assemble admin: %w", err)
		}
		snapshot[keyActiveCustomers] = s.ActiveCustomers
		snapshot[keyPendingCount] = s.PendingCount
		snapshot[keyPendingTotal] = s.PendingTotal
		snapshot[keyOverdueCount] = s.OverdueCount
		snapshot[keyOverdueTotal] = s.OverdueTotal
		snapshot[keyReceivedMonth] = s.ReceivedMonth
		snapshot[keyOverduePreview] = nonNil(s.OverduePreview)
		snapshot[keyExpiringServices] = nonNil(s.ExpiringServices)
	case TierReseller:
		s, err := a.source.ResellerSummary(ctx, tenantID, actor.ID)
		if err != nil {
			return ConversationContext{}, fmt.Errorf("assistant: assemble reseller: %w", err)
		}
		snapshot[keyCustomers] = s.Customers
		snapshot[keyPendingCount] = s.PendingCount
		snapshot[keyPendingTotal] = s.PendingTotal
		snapshot[keyOverdueCount] = s.OverdueCount
		snapshot[keyOverdueTotal] = s.OverdueTotal
		snapshot[keyCommissionBalance] = s.CommissionBalance
		snapshot[keyOverduePreview] = nonNil(s.OverduePreview)
		snapshot[keyExpiringServices] = nonNil(s.ExpiringServices)
	case TierCustomer:
		s, err := a.source.CustomerSummary(ctx, tenantID, actor.CustomerID)
		if err != nil {
			return ConversationContext{}, fmt.Errorf("assistant: assemble customer: %w", err)
		}
		snapshot[keyPendingTotal] = s.PendingTotal
		snapshot[keyOverdueCount] = s.OverdueCount
		snapshot[keyReferralBalance] = s.ReferralBalance
		snapshot[keyPendingCharges] = nonNil(s.PendingCharges)
		snapshot[keyActiveServices] = nonNil(s.ActiveServices)
	default:
		return ConversationContext{}, fmt.Errorf("assistant: unknown role tier %q", actor.Tier)
	}

	if actor.Tier != TierCustomer {
		e, err := a.source.ExpenseSummary(ctx, tenantID)
		if err != nil {
			return ConversationContext{}, fmt.Errorf("assistant: assemble expenses: %w", err)
		}
		snapshot[keyExpensesPending] = nonNil(e.Pending)
		snapshot[keyExpensesOverdue] = nonNil(e.Overdue)
		snapshot[keyExpensesPendingCount] = e.PendingCount
		snapshot[keyExpensesOverdueCount] = e.OverdueCount
		snapshot[keyExpensesMonthDueTotal] = e.MonthDueTotal
		snapshot[keyExpensesMonthPaid] = e.MonthPaidTotal
	}

	kb, err := a.source.KnowledgeBase(ctx, tenantID)
	if err != nil {
		return ConversationContext{}, fmt.Errorf("assistant: assemble knowledge base: %w", err)
	}

	return ConversationContext{
		TenantID:            tenantID,
		Actor:               actor,
		Snapshot:            snapshot,
		KnowledgeBase:       kb,
		Personality:         profile.Personality,
		BusinessDescription: profile.BusinessDescription,
		BusinessHours:       profile.BusinessHours,
		MenuOptions:         profile.MenuOptions,
	}, nil
}

// nonNil keeps preview lists serializable as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

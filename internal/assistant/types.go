// Package assistant implements the conversational action-dispatch pipeline:
// context assembly, prompt composition, directive parsing, the confirmation
// gate, execution against tenant data and proactive alerts.
package assistant

import (
	"strings"

	"github.com/wolfman30/billing-assistant/internal/billing"
)

// RoleTier is the actor's place in the organizational hierarchy.
type RoleTier string

const (
	TierOperator RoleTier = "operator"
	TierAdmin    RoleTier = "admin"
	TierReseller RoleTier = "reseller"
	TierCustomer RoleTier = "customer"
)

// ParseTier validates a tier name.
func ParseTier(s string) (RoleTier, bool) {
	switch t := RoleTier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierOperator, TierAdmin, TierReseller, TierCustomer:
		return t, true
	}
	return "", false
}

// Actor is the human talking to the assistant.
type Actor struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	Tier RoleTier `json:"tier"`
	// CustomerID links an end-customer actor to their billing record. It may
	// be empty when no billing identity exists yet.
	CustomerID string `json:"customer_id,omitempty"`
}

// Snapshot is the flat, serializable business context for one request.
type Snapshot map[string]any

type MenuOption struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

// ConversationContext is assembled per request and never persisted.
type ConversationContext struct {
	TenantID            string
	Actor               Actor
	Snapshot            Snapshot
	KnowledgeBase       []billing.KnowledgeEntry
	Personality         string
	BusinessDescription string
	BusinessHours       string
	MenuOptions         []MenuOption
}

// Endpoint identifies which assistant surface is answering.
type Endpoint string

const (
	EndpointChat       Endpoint = "chat"
	EndpointContextual Endpoint = "contextual"
	EndpointExpenses   Endpoint = "expenses"
)

type DirectiveType string

const (
	CreateExpense   DirectiveType = "create-expense"
	DeleteExpense   DirectiveType = "delete-expense"
	MarkExpensePaid DirectiveType = "mark-expense-paid"
	ListExpenses    DirectiveType = "list-expenses"
	CreateCustomer  DirectiveType = "create-customer"
	CreateCharge    DirectiveType = "create-charge"
	MarkPaid        DirectiveType = "mark-paid"
	Postpone        DirectiveType = "postpone"
	Cancel          DirectiveType = "cancel"
	ListCustomers   DirectiveType = "list-customers"
	ListCharges     DirectiveType = "list-charges"
	ListOverdue     DirectiveType = "list-overdue"
	TransferToHuman DirectiveType = "transfer-to-human"
	ShowPlans       DirectiveType = "show-plans"
)

// AllDirectiveTypes lists the closed grammar in display order.
var AllDirectiveTypes = []DirectiveType{
	CreateExpense, DeleteExpense, MarkExpensePaid, ListExpenses,
	CreateCustomer, CreateCharge, MarkPaid, Postpone, Cancel,
	ListCustomers, ListCharges, ListOverdue, TransferToHuman, ShowPlans,
}

var destructive = map[DirectiveType]bool{
	DeleteExpense:   true,
	MarkExpensePaid: true,
	Cancel:          true,
	MarkPaid:        true,
}

// Known reports whether t belongs to the grammar.
func (t DirectiveType) Known() bool {
	_, ok := grammar[t]
	return ok
}

// RequiresConfirmation is derived only from the type.
func (t DirectiveType) RequiresConfirmation() bool {
	return destructive[t]
}

type DirectiveState string

const (
	StateProposed             DirectiveState = "proposed"
	StateAwaitingConfirmation DirectiveState = "awaiting_confirmation"
	StateConfirmed            DirectiveState = "confirmed"
	StateExecuted             DirectiveState = "executed"
	StateCancelled            DirectiveState = "cancelled"
)

// Directive is a typed command extracted from model output.
type Directive struct {
	Type            DirectiveType  `json:"type"`
	Payload         map[string]any `json:"payload"`
	ConfirmRequired bool           `json:"confirmRequired"`
	State           DirectiveState `json:"state,omitempty"`
}

// ActionResult is always returned by the executor, never an error.
type ActionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Scope carries the request identity every execution is bound to.
type Scope struct {
	TenantID  string
	SessionID string
	Endpoint  Endpoint
	Actor     Actor
}

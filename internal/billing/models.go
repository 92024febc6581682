package billing

import "time"

const (
	ChargePending   = "pending"
	ChargePaid      = "paid"
	ChargeCancelled = "cancelled"

	ExpensePending = "pending"
	ExpensePaid    = "paid"
)

type Customer struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Document   string    `json:"document,omitempty"`
	ResellerID string    `json:"reseller_id,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewCustomer struct {
	Name       string
	Email      string
	Phone      string
	Document   string
	ResellerID string
}

type Charge struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Amount       float64    `json:"amount"`
	DueDate      time.Time  `json:"due_date"`
	Status       string     `json:"status"`
	Description  string     `json:"description,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

type NewCharge struct {
	CustomerID  string
	Amount      float64
	DueDate     time.Time
	Description string
}

// ChargeFilter narrows ListCharges. Empty fields do not filter.
type ChargeFilter struct {
	Status      string
	CustomerID  string
	ResellerID  string
	OverdueOnly bool
	Limit       int
}

type Category struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

type Expense struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Description  string     `json:"description"`
	Amount       float64    `json:"amount"`
	DueDate      time.Time  `json:"due_date"`
	CategoryID   string     `json:"category_id,omitempty"`
	CategoryName string     `json:"category,omitempty"`
	Status       string     `json:"status"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

type NewExpense struct {
	Description string
	Amount      float64
	DueDate     time.Time
	CategoryID  string
}

type Plan struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

type Handoff struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	SessionID string    `json:"session_id"`
	ActorID   string    `json:"actor_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeEntry is one FAQ-style grounding pair.
type KnowledgeEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ChargePreview struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Amount       float64   `json:"amount"`
	DueDate      time.Time `json:"due_date"`
}

type ServicePreview struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CustomerName string    `json:"customer_name,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type ExpensePreview struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	DueDate     time.Time `json:"due_date"`
}

// OperatorSummary is the platform operator's view of a tenant.
type OperatorSummary struct {
	Customers        int
	Resellers        int
	ActiveServices   int
	RecurringRevenue float64
	OverdueCount     int
	OverdueTotal     float64
	ReceivedMonth    float64
	ExpiringServices []ServicePreview
}

// AdminSummary is the organization admin's receivables view.
type AdminSummary struct {
	ActiveCustomers  int
	PendingCount     int
	PendingTotal     float64
	OverdueCount     int
	OverdueTotal     float64
	ReceivedMonth    float64
	OverduePreview   []ChargePreview
	ExpiringServices []ServicePreview
}

// ResellerSummary covers only customers referred by one reseller.
type ResellerSummary struct {
	Customers         int
	PendingCount      int
	PendingTotal      float64
	OverdueCount      int
	OverdueTotal      float64
	CommissionBalance float64
	OverduePreview    []ChargePreview
	ExpiringServices  []ServicePreview
}

// CustomerSummary covers a single end-customer's own records.
type CustomerSummary struct {
	ActiveServices  []ServicePreview
	PendingCharges  []ChargePreview
	PendingTotal    float64
	OverdueCount    int
	ReferralBalance float64
}

type ExpenseSummary struct {
	Pending        []ExpensePreview
	Overdue        []ExpensePreview
	MonthDueTotal  float64
	MonthPaidTotal float64
	OverdueCount   int
	PendingCount   int
}

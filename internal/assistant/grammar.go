package assistant

// directiveDoc documents one directive for the command grammar.
type directiveDoc struct {
	summary  string
	required []string
	optional []string
	example  string
}

var grammar = map[DirectiveType]directiveDoc{
	CreateExpense: {
		summary:  "register a bill the business has to pay",
		required: []string{"description", "amount", "due_date (YYYY-MM-DD)"},
		optional: []string{"category"},
		example:  `{"description":"Rent","amount":1500,"due_date":"2025-01-05","category":"Office"}`,
	},
	DeleteExpense: {
		summary:  "delete an expense",
		required: []string{"id"},
		example:  `{"id":"<expense id>"}`,
	},
	MarkExpensePaid: {
		summary:  "mark an expense as paid",
		required: []string{"id"},
		example:  `{"id":"<expense id>"}`,
	},
	ListExpenses: {
		summary:  "list expenses",
		optional: []string{"status (pending|paid)"},
		example:  `{"status":"pending"}`,
	},
	CreateCustomer: {
		summary:  "register a new customer",
		required: []string{"name"},
		optional: []string{"email", "phone", "document"},
		example:  `{"name":"Maria Souza","email":"maria@example.com"}`,
	},
	CreateCharge: {
		summary:  "create a charge for a customer",
		required: []string{"customer_id or customer_name", "amount", "due_date (YYYY-MM-DD)"},
		optional: []string{"description"},
		example:  `{"customer_name":"Maria Souza","amount":99.9,"due_date":"2025-02-10"}`,
	},
	MarkPaid: {
		summary:  "mark a charge as paid",
		required: []string{"id"},
		example:  `{"id":"<charge id>"}`,
	},
	Postpone: {
		summary:  "move a charge's due date forward",
		required: []string{"id", "days"},
		example:  `{"id":"<charge id>","days":7}`,
	},
	Cancel: {
		summary:  "cancel a pending charge",
		required: []string{"id"},
		example:  `{"id":"<charge id>"}`,
	},
	ListCustomers: {
		summary:  "list customers",
		optional: []string{"name"},
		example:  `{}`,
	},
	ListCharges: {
		summary:  "list charges",
		optional: []string{"status (pending|paid|cancelled)", "customer_name"},
		example:  `{"status":"pending"}`,
	},
	ListOverdue: {
		summary: "list overdue charges",
		example: `{}`,
	},
	TransferToHuman: {
		summary:  "hand the conversation to a human agent",
		optional: []string{"reason"},
		example:  `{"reason":"customer asked for a person"}`,
	},
	ShowPlans: {
		summary: "show the available plans",
		example: `{}`,
	},
}

var (
	staffContextual = []DirectiveType{
		CreateCustomer, CreateCharge, MarkPaid, Postpone, Cancel,
		ListCustomers, ListCharges, ListOverdue, TransferToHuman,
	}
	resellerContextual = []DirectiveType{
		CreateCustomer, CreateCharge, ListCustomers, ListCharges, ListOverdue, TransferToHuman,
	}
	customerContextual = []DirectiveType{ListCharges, ShowPlans, TransferToHuman}
	chatTypes          = []DirectiveType{TransferToHuman, ShowPlans, ListCharges}
	expenseTypes       = []DirectiveType{CreateExpense, DeleteExpense, MarkExpensePaid, ListExpenses}
)

// AllowedDirectives returns the directive types an endpoint offers to a tier.
func AllowedDirectives(endpoint Endpoint, tier RoleTier) []DirectiveType {
	switch endpoint {
	case EndpointChat:
		return chatTypes
	case EndpointContextual:
		switch tier {
		case TierOperator, TierAdmin:
			return staffContextual
		case TierReseller:
			return resellerContextual
		case TierCustomer:
			return customerContextual
		}
	case EndpointExpenses:
		if tier != TierCustomer {
			return expenseTypes
		}
	}
	return nil
}

// Allowed reports whether t may be dispatched for endpoint and tier.
func Allowed(endpoint Endpoint, tier RoleTier, t DirectiveType) bool {
	for _, allowed := range AllowedDirectives(endpoint, tier) {
		if allowed == t {
			return true
		}
	}
	return false
}

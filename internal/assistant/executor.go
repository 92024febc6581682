package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/billing-assistant/internal/billing"
	"github.com/wolfman30/billing-assistant/pkg/logging"
)

const genericFailure = "I couldn't complete that action right now. Please try again in a moment."

// ActionStore is the write side of the business data store used by the
// executor. Every method is scoped by tenantID.
type ActionStore interface {
	GetCustomer(ctx context.Context, tenantID, customerID string) (billing.Customer, error)
	FindCustomersByName(ctx context.Context, tenantID, name string) ([]billing.Customer, error)
	ListCustomers(ctx context.Context, tenantID, resellerID string, limit int) ([]billing.Customer, error)
	CreateCustomer(ctx context.Context, tenantID string, in billing.NewCustomer) (billing.Customer, error)
	CreateCharge(ctx context.Context, tenantID string, in billing.NewCharge) (billing.Charge, error)
	MarkChargePaid(ctx context.Context, tenantID, chargeID string) (billing.Charge, error)
	PostponeCharge(ctx context.Context, tenantID, chargeID string, days int) (billing.Charge, error)
	CancelCharge(ctx context.Context, tenantID, chargeID string) (billing.Charge, error)
	ListCharges(ctx context.Context, tenantID string, f billing.ChargeFilter) ([]billing.Charge, error)
	ResolveCategory(ctx context.Context, tenantID, name string) (billing.Category, error)
	CreateExpense(ctx context.Context, tenantID string, in billing.NewExpense) (billing.Expense, error)
	DeleteExpense(ctx context.Context, tenantID, expenseID string) (billing.Expense, error)
	MarkExpensePaid(ctx context.Context, tenantID, expenseID string) (billing.Expense, error)
	ListExpenses(ctx context.Context, tenantID, status string, limit int) ([]billing.Expense, error)
	ListPlans(ctx context.Context, tenantID string) ([]billing.Plan, error)
	CreateHandoff(ctx context.Context, tenantID, sessionID, actorID, reason string) (billing.Handoff, error)
}

// Executor validates and performs directives against tenant data.
type Executor struct {
	store  ActionStore
	logger *logging.Logger
}

func NewExecutor(store ActionStore, logger *logging.Logger) *Executor {
	if store == nil {
		panic("assistant: action store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{store: store, logger: logger}
}

func fail(format string, args ...any) ActionResult {
	return ActionResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Execute never returns an error: validation problems and store failures
// are reported through the result.
func (e *Executor) Execute(ctx context.Context, scope Scope, d Directive) ActionResult {
	if strings.TrimSpace(scope.TenantID) == "" {
		return fail("A tenant is required to perform actions.")
	}
	if !d.Type.Known() {
		return fail("I don't know how to perform %q.", d.Type)
	}
	if scope.Endpoint != "" && !Allowed(scope.Endpoint, scope.Actor.Tier, d.Type) {
		return fail("That action is not available here.")
	}
	payload := d.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	switch d.Type {
	case CreateExpense:
		return e.createExpense(ctx, scope, payload)
	case DeleteExpense:
		return e.deleteExpense(ctx, scope, payload)
	case MarkExpensePaid:
		return e.markExpensePaid(ctx, scope, payload)
	case ListExpenses:
		return e.listExpenses(ctx, scope, payload)
	case CreateCustomer:
		return e.createCustomer(ctx, scope, payload)
	case CreateCharge:
		return e.createCharge(ctx, scope, payload)
	case MarkPaid:
		return e.transitionCharge(ctx, scope, payload, "marked as paid", e.store.MarkChargePaid)
	case Cancel:
		return e.transitionCharge(ctx, scope, payload, "cancelled", e.store.CancelCharge)
	case Postpone:
		return e.postpone(ctx, scope, payload)
	case ListCustomers:
		return e.listCustomers(ctx, scope, payload)
	case ListCharges:
		return e.listCharges(ctx, scope, payload, false)
	case ListOverdue:
		return e.listCharges(ctx, scope, payload, true)
	case TransferToHuman:
		return e.transferToHuman(ctx, scope, payload)
	case ShowPlans:
		return e.showPlans(ctx, scope)
	}
	return fail("I don't know how to perform %q.", d.Type)
}

// storeFailure converts a store error into a result, logging anything that
// is not an expected lookup miss.
func (e *Executor) storeFailure(scope Scope, op string, err error, notFound string) ActionResult {
	if errors.Is(err, billing.ErrNotFound) && notFound != "" {
		return fail("%s", notFound)
	}
	e.logger.Error("assistant action failed", "tenant_id", scope.TenantID, "session_id", scope.SessionID, "op", op, "error", err)
	return fail(genericFailure)
}

func requireID(payload map[string]any, what string) (string, *ActionResult) {
	id := stringField(payload, "id")
	if id == "" {
		r := fail("The %s id is required.", what)
		return "", &r
	}
	if _, err := uuid.Parse(id); err != nil {
		r := fail("%q is not a valid %s id.", id, what)
		return "", &r
	}
	return id, nil
}

func (e *Executor) createExpense(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	description := stringField(p, "description")
	if description == "" {
		return fail("The expense description is required.")
	}
	amount, err := amountField(p, "amount")
	if err != nil {
		return fail("Invalid expense: %s.", err)
	}
	due, err := dateField(p, "due_date")
	if err != nil {
		return fail("Invalid expense: %s.", err)
	}

	in := billing.NewExpense{Description: description, Amount: amount, DueDate: due}
	categoryName := stringField(p, "category")
	if categoryName != "" {
		cat, err := e.store.ResolveCategory(ctx, scope.TenantID, categoryName)
		if err != nil {
			return e.storeFailure(scope, "resolve_category", err, "I couldn't find that category.")
		}
		in.CategoryID = cat.ID
		categoryName = cat.Name
	}

	expense, err := e.store.CreateExpense(ctx, scope.TenantID, in)
	if err != nil {
		return e.storeFailure(scope, "create_expense", err, "I couldn't create that expense.")
	}
	expense.CategoryName = categoryName

	msg := fmt.Sprintf("Expense %q registered: %s (amount %v) due %s.", expense.Description, formatAmount(expense.Amount), p["amount"], expense.DueDate.Format(dateLayout))
	if categoryName != "" {
		msg = strings.TrimSuffix(msg, ".") + fmt.Sprintf(" in category %s.", categoryName)
	}
	return ActionResult{Success: true, Message: msg, Data: map[string]any{"expense": expense}}
}

func (e *Executor) deleteExpense(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	id, bad := requireID(p, "expense")
	if bad != nil {
		return *bad
	}
	expense, err := e.store.DeleteExpense(ctx, scope.TenantID, id)
	if err != nil {
		return e.storeFailure(scope, "delete_expense", err, "I couldn't find that expense.")
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Expense %q (%s) deleted.", expense.Description, formatAmount(expense.Amount)),
		Data:    map[string]any{"expense": expense},
	}
}

func (e *Executor) markExpensePaid(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	id, bad := requireID(p, "expense")
	if bad != nil {
		return *bad
	}
	expense, err := e.store.MarkExpensePaid(ctx, scope.TenantID, id)
	if errors.Is(err, billing.ErrInvalidState) {
		return fail("Expense %q is already %s.", expense.Description, expense.Status)
	}
	if err != nil {
		return e.storeFailure(scope, "mark_expense_paid", err, "I couldn't find that expense.")
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Expense %q (%s) marked as paid.", expense.Description, formatAmount(expense.Amount)),
		Data:    map[string]any{"expense": expense},
	}
}

func (e *Executor) listExpenses(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	status := strings.ToLower(stringField(p, "status"))
	if status != "" && status != billing.ExpensePending && status != billing.ExpensePaid {
		return fail("Unknown expense status %q.", status)
	}
	expenses, err := e.store.ListExpenses(ctx, scope.TenantID, status, 20)
	if err != nil {
		return e.storeFailure(scope, "list_expenses", err, "")
	}
	if len(expenses) == 0 {
		return ActionResult{Success: true, Message: "No expenses found.", Data: map[string]any{"expenses": []billing.Expense{}}}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s:", len(expenses), plural(len(expenses), "expense", "expenses"))
	for _, x := range expenses {
		fmt.Fprintf(&b, "\n- %s: %s due %s (%s)", x.Description, formatAmount(x.Amount), x.DueDate.Format(dateLayout), x.Status)
	}
	return ActionResult{Success: true, Message: b.String(), Data: map[string]any{"expenses": expenses}}
}

func (e *Executor) createCustomer(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	name := stringField(p, "name")
	if name == "" {
		return fail("The customer name is required.")
	}
	in := billing.NewCustomer{
		Name:     name,
		Email:    stringField(p, "email"),
		Phone:    stringField(p, "phone"),
		Document: stringField(p, "document"),
	}
	if scope.Actor.Tier == TierReseller {
		in.ResellerID = scope.Actor.ID
	}
	customer, err := e.store.CreateCustomer(ctx, scope.TenantID, in)
	if err != nil {
		return e.storeFailure(scope, "create_customer", err, "")
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Customer %s registered.", customer.Name),
		Data:    map[string]any{"customer": customer},
	}
}

// resolveCustomer finds the customer a payload refers to by id or by name.
// An exact case-insensitive name match wins; several partial matches are
// reported back for disambiguation.
func (e *Executor) resolveCustomer(ctx context.Context, scope Scope, p map[string]any) (billing.Customer, *ActionResult) {
	resellerOnly := scope.Actor.Tier == TierReseller
	if id := stringField(p, "customer_id"); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			r := fail("%q is not a valid customer id.", id)
			return billing.Customer{}, &r
		}
		c, err := e.store.GetCustomer(ctx, scope.TenantID, id)
		if err == nil && resellerOnly && c.ResellerID != scope.Actor.ID {
			err = billing.ErrNotFound
		}
		if err != nil {
			r := e.storeFailure(scope, "get_customer", err, "I couldn't find that customer.")
			return billing.Customer{}, &r
		}
		return c, nil
	}

	name := stringField(p, "customer_name")
	if name == "" {
		r := fail("Tell me which customer: a customer_id or customer_name is required.")
		return billing.Customer{}, &r
	}
	found, err := e.store.FindCustomersByName(ctx, scope.TenantID, name)
	if err != nil {
		r := e.storeFailure(scope, "find_customers", err, "")
		return billing.Customer{}, &r
	}
	if resellerOnly {
		mine := found[:0:0]
		for _, c := range found {
			if c.ResellerID == scope.Actor.ID {
				mine = append(mine, c)
			}
		}
		found = mine
	}

	var exact []billing.Customer
	for _, c := range found {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			exact = append(exact, c)
		}
	}
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) == 0 && len(found) == 1:
		return found[0], nil
	case len(found) == 0:
		r := fail("No customer named %q was found.", name)
		return billing.Customer{}, &r
	}

	candidates := found
	if len(exact) > 1 {
		candidates = exact
	}
	labels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		label := c.Name
		if c.Email != "" {
			label += " <" + c.Email + ">"
		}
		labels = append(labels, fmt.Sprintf("%s [%s]", label, c.ID))
	}
	r := ActionResult{
		Success: false,
		Message: fmt.Sprintf("Several customers match %q: %s. Which one did you mean?", name, strings.Join(labels, "; ")),
		Data:    map[string]any{"candidates": candidates},
	}
	return billing.Customer{}, &r
}

func (e *Executor) createCharge(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	amount, err := amountField(p, "amount")
	if err != nil {
		return fail("Invalid charge: %s.", err)
	}
	due, err := dateField(p, "due_date")
	if err != nil {
		return fail("Invalid charge: %s.", err)
	}
	customer, bad := e.resolveCustomer(ctx, scope, p)
	if bad != nil {
		return *bad
	}

	charge, err := e.store.CreateCharge(ctx, scope.TenantID, billing.NewCharge{
		CustomerID:  customer.ID,
		Amount:      amount,
		DueDate:     due,
		Description: stringField(p, "description"),
	})
	if err != nil {
		return e.storeFailure(scope, "create_charge", err, "I couldn't find that customer.")
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Charge of %s (amount %v) created for %s, due %s.", formatAmount(charge.Amount), p["amount"], customer.Name, charge.DueDate.Format(dateLayout)),
		Data:    map[string]any{"charge": charge},
	}
}

type chargeTransition func(ctx context.Context, tenantID, chargeID string) (billing.Charge, error)

func (e *Executor) transitionCharge(ctx context.Context, scope Scope, p map[string]any, verb string, apply chargeTransition) ActionResult {
	id, bad := requireID(p, "charge")
	if bad != nil {
		return *bad
	}
	charge, err := apply(ctx, scope.TenantID, id)
	if errors.Is(err, billing.ErrInvalidState) {
		return fail("The charge for %s is already %s.", charge.CustomerName, charge.Status)
	}
	if err != nil {
		return e.storeFailure(scope, "charge_"+strings.ReplaceAll(verb, " ", "_"), err, "I couldn't find that charge.")
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Charge of %s for %s %s.", formatAmount(charge.Amount), charge.CustomerName, verb),
		Data:    map[string]any{"charge": charge},
	}
}

func (e *Executor) postpone(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	id, bad := requireID(p, "charge")
	if bad != nil {
		return *bad
	}
	days, err := positiveIntField(p, "days")
	if err != nil {
		return fail("Invalid postponement: %s.", err)
	}
	charge, err := e.store.PostponeCharge(ctx, scope.TenantID, id, days)
	if errors.Is(err, billing.ErrInvalidState) {
		return fail("The charge for %s is already %s.", charge.CustomerName, charge.Status)
	}
	if err != nil {
		return e.storeFailure(scope, "postpone_charge", err, "I couldn't find that charge.")
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("Charge of %s for %s postponed by %d %s to %s.", formatAmount(charge.Amount), charge.CustomerName, days, plural(days, "day", "days"), charge.DueDate.Format(dateLayout)),
		Data:    map[string]any{"charge": charge},
	}
}

func (e *Executor) listCustomers(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	var (
		customers []billing.Customer
		err       error
	)
	resellerID := ""
	if scope.Actor.Tier == TierReseller {
		resellerID = scope.Actor.ID
	}
	if name := stringField(p, "name"); name != "" {
		customers, err = e.store.FindCustomersByName(ctx, scope.TenantID, name)
		if resellerID != "" {
			mine := customers[:0:0]
			for _, c := range customers {
				if c.ResellerID == resellerID {
					mine = append(mine, c)
				}
			}
			customers = mine
		}
	} else {
		customers, err = e.store.ListCustomers(ctx, scope.TenantID, resellerID, 20)
	}
	if err != nil {
		return e.storeFailure(scope, "list_customers", err, "")
	}
	if len(customers) == 0 {
		return ActionResult{Success: true, Message: "No customers found.", Data: map[string]any{"customers": []billing.Customer{}}}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s:", len(customers), plural(len(customers), "customer", "customers"))
	for _, c := range customers {
		fmt.Fprintf(&b, "\n- %s", c.Name)
		if c.Email != "" {
			fmt.Fprintf(&b, " (%s)", c.Email)
		}
	}
	return ActionResult{Success: true, Message: b.String(), Data: map[string]any{"customers": customers}}
}

func (e *Executor) listCharges(ctx context.Context, scope Scope, p map[string]any, overdueOnly bool) ActionResult {
	filter := billing.ChargeFilter{OverdueOnly: overdueOnly, Limit: 20}
	if !overdueOnly {
		status := strings.ToLower(stringField(p, "status"))
		switch status {
		case "", billing.ChargePending, billing.ChargePaid, billing.ChargeCancelled:
			filter.Status = status
		default:
			return fail("Unknown charge status %q.", status)
		}
	}

	switch scope.Actor.Tier {
	case TierCustomer:
		if scope.Actor.CustomerID == "" {
			return ActionResult{Success: true, Message: "You have no charges on file.", Data: map[string]any{"charges": []billing.Charge{}}}
		}
		filter.CustomerID = scope.Actor.CustomerID
	case TierReseller:
		filter.ResellerID = scope.Actor.ID
	}
	if filter.CustomerID == "" && stringField(p, "customer_name") != "" {
		customer, bad := e.resolveCustomer(ctx, scope, p)
		if bad != nil {
			return *bad
		}
		filter.CustomerID = customer.ID
	}

	charges, err := e.store.ListCharges(ctx, scope.TenantID, filter)
	if err != nil {
		return e.storeFailure(scope, "list_charges", err, "")
	}
	if len(charges) == 0 {
		msg := "No charges found."
		if overdueOnly {
			msg = "There are no overdue charges."
		}
		return ActionResult{Success: true, Message: msg, Data: map[string]any{"charges": []billing.Charge{}}}
	}

	var (
		b     strings.Builder
		total float64
	)
	for _, ch := range charges {
		total += ch.Amount
	}
	fmt.Fprintf(&b, "%d %s totaling %s:", len(charges), plural(len(charges), "charge", "charges"), formatAmount(total))
	for _, ch := range charges {
		fmt.Fprintf(&b, "\n- %s: %s due %s (%s)", ch.CustomerName, formatAmount(ch.Amount), ch.DueDate.Format(dateLayout), ch.Status)
	}
	return ActionResult{Success: true, Message: b.String(), Data: map[string]any{"charges": charges, "total": total}}
}

func (e *Executor) transferToHuman(ctx context.Context, scope Scope, p map[string]any) ActionResult {
	handoff, err := e.store.CreateHandoff(ctx, scope.TenantID, scope.SessionID, scope.Actor.ID, stringField(p, "reason"))
	if err != nil {
		return e.storeFailure(scope, "create_handoff", err, "")
	}
	return ActionResult{
		Success: true,
		Message: "I've asked a member of our team to take over this conversation. They will reply here shortly.",
		Data:    map[string]any{"handoffId": handoff.ID, "requestedAt": handoff.CreatedAt.UTC().Format(time.RFC3339)},
	}
}

func (e *Executor) showPlans(ctx context.Context, scope Scope) ActionResult {
	plans, err := e.store.ListPlans(ctx, scope.TenantID)
	if err != nil {
		return e.storeFailure(scope, "list_plans", err, "")
	}
	if len(plans) == 0 {
		return ActionResult{Success: true, Message: "There are no plans available right now.", Data: map[string]any{"plans": []billing.Plan{}}}
	}
	var b strings.Builder
	b.WriteString("Available plans:")
	for _, plan := range plans {
		fmt.Fprintf(&b, "\n- %s: %s", plan.Name, formatAmount(plan.Price))
		if plan.Description != "" {
			fmt.Fprintf(&b, " (%s)", plan.Description)
		}
	}
	return ActionResult{Success: true, Message: b.String(), Data: map[string]any{"plans": plans}}
}

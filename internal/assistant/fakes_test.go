package assistant

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/billing-assistant/internal/auditlog"
	"github.com/wolfman30/billing-assistant/internal/billing"
	"github.com/wolfman30/billing-assistant/internal/llm"
	"github.com/wolfman30/billing-assistant/internal/tenantconfig"
)

// fakeStore is an in-memory, tenant-partitioned business store.
type fakeStore struct {
	mu         sync.Mutex
	customers  map[string][]billing.Customer
	charges    map[string][]billing.Charge
	expenses   map[string][]billing.Expense
	categories map[string][]billing.Category
	plans      map[string][]billing.Plan
	services   map[string][]billing.ServicePreview
	knowledge  map[string][]billing.KnowledgeEntry
	overdue    map[string]int
	calls      []string
	failWrites error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers:  map[string][]billing.Customer{},
		charges:    map[string][]billing.Charge{},
		expenses:   map[string][]billing.Expense{},
		categories: map[string][]billing.Category{},
		plans:      map[string][]billing.Plan{},
		services:   map[string][]billing.ServicePreview{},
		knowledge:  map[string][]billing.KnowledgeEntry{},
		overdue:    map[string]int{},
	}
}

func (f *fakeStore) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeStore) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStore) addCustomer(tenantID, name, resellerID string) billing.Customer {
	c := billing.Customer{ID: uuid.NewString(), TenantID: tenantID, Name: name, ResellerID: resellerID, Status: "active"}
	f.customers[tenantID] = append(f.customers[tenantID], c)
	return c
}

func (f *fakeStore) addCharge(tenantID string, c billing.Customer, amount float64, due time.Time) billing.Charge {
	ch := billing.Charge{ID: uuid.NewString(), TenantID: tenantID, CustomerID: c.ID, CustomerName: c.Name, Amount: amount, DueDate: due, Status: billing.ChargePending}
	f.charges[tenantID] = append(f.charges[tenantID], ch)
	return ch
}

func (f *fakeStore) addExpense(tenantID, description string, amount float64, due time.Time) billing.Expense {
	e := billing.Expense{ID: uuid.NewString(), TenantID: tenantID, Description: description, Amount: amount, DueDate: due, Status: billing.ExpensePending}
	f.expenses[tenantID] = append(f.expenses[tenantID], e)
	return e
}

// ContextSource

func (f *fakeStore) OperatorSummary(_ context.Context, tenantID string) (billing.OperatorSummary, error) {
	f.record("OperatorSummary")
	return billing.OperatorSummary{
		Customers:        len(f.customers[tenantID]),
		OverdueCount:     f.overdue[tenantID],
		ExpiringServices: f.services[tenantID],
	}, nil
}

func (f *fakeStore) AdminSummary(_ context.Context, tenantID string) (billing.AdminSummary, error) {
	f.record("AdminSummary")
	var pending []billing.ChargePreview
	for _, ch := range f.charges[tenantID] {
		pending = append(pending, billing.ChargePreview{ID: ch.ID, CustomerName: ch.CustomerName, Amount: ch.Amount, DueDate: ch.DueDate})
	}
	return billing.AdminSummary{
		ActiveCustomers:  len(f.customers[tenantID]),
		PendingCount:     len(f.charges[tenantID]),
		OverdueCount:     f.overdue[tenantID],
		OverduePreview:   pending,
		ExpiringServices: f.services[tenantID],
	}, nil
}

func (f *fakeStore) ResellerSummary(_ context.Context, tenantID, resellerID string) (billing.ResellerSummary, error) {
	f.record("ResellerSummary:" + resellerID)
	n := 0
	for _, c := range f.customers[tenantID] {
		if c.ResellerID == resellerID {
			n++
		}
	}
	return billing.ResellerSummary{Customers: n}, nil
}

func (f *fakeStore) CustomerSummary(_ context.Context, tenantID, customerID string) (billing.CustomerSummary, error) {
	f.record("CustomerSummary:" + customerID)
	var out billing.CustomerSummary
	if customerID == "" {
		return out, nil
	}
	for _, ch := range f.charges[tenantID] {
		if ch.CustomerID == customerID && ch.Status == billing.ChargePending {
			out.PendingCharges = append(out.PendingCharges, billing.ChargePreview{ID: ch.ID, CustomerName: ch.CustomerName, Amount: ch.Amount, DueDate: ch.DueDate})
			out.PendingTotal += ch.Amount
		}
	}
	return out, nil
}

func (f *fakeStore) ExpenseSummary(_ context.Context, tenantID string) (billing.ExpenseSummary, error) {
	f.record("ExpenseSummary")
	var out billing.ExpenseSummary
	for _, e := range f.expenses[tenantID] {
		if e.Status == billing.ExpensePending {
			out.Pending = append(out.Pending, billing.ExpensePreview{ID: e.ID, Description: e.Description, Amount: e.Amount, DueDate: e.DueDate})
			out.PendingCount++
		}
	}
	return out, nil
}

func (f *fakeStore) KnowledgeBase(_ context.Context, tenantID string) ([]billing.KnowledgeEntry, error) {
	f.record("KnowledgeBase")
	return f.knowledge[tenantID], nil
}

// ActionStore

func (f *fakeStore) GetCustomer(_ context.Context, tenantID, customerID string) (billing.Customer, error) {
	f.record("GetCustomer")
	for _, c := range f.customers[tenantID] {
		if c.ID == customerID {
			return c, nil
		}
	}
	return billing.Customer{}, billing.ErrNotFound
}

func (f *fakeStore) FindCustomersByName(_ context.Context, tenantID, name string) ([]billing.Customer, error) {
	f.record("FindCustomersByName")
	var out []billing.Customer
	for _, c := range f.customers[tenantID] {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCustomers(_ context.Context, tenantID, resellerID string, _ int) ([]billing.Customer, error) {
	f.record("ListCustomers")
	var out []billing.Customer
	for _, c := range f.customers[tenantID] {
		if resellerID == "" || c.ResellerID == resellerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateCustomer(_ context.Context, tenantID string, in billing.NewCustomer) (billing.Customer, error) {
	f.record("CreateCustomer")
	if f.failWrites != nil {
		return billing.Customer{}, f.failWrites
	}
	c := billing.Customer{ID: uuid.NewString(), TenantID: tenantID, Name: in.Name, Email: in.Email, ResellerID: in.ResellerID, Status: "active"}
	f.customers[tenantID] = append(f.customers[tenantID], c)
	return c, nil
}

func (f *fakeStore) CreateCharge(_ context.Context, tenantID string, in billing.NewCharge) (billing.Charge, error) {
	f.record("CreateCharge")
	if f.failWrites != nil {
		return billing.Charge{}, f.failWrites
	}
	for _, c := range f.customers[tenantID] {
		if c.ID == in.CustomerID {
			return f.addCharge(tenantID, c, in.Amount, in.DueDate), nil
		}
	}
	return billing.Charge{}, billing.ErrNotFound
}

func (f *fakeStore) updateCharge(tenantID, chargeID string, apply func(*billing.Charge)) (billing.Charge, error) {
	if f.failWrites != nil {
		return billing.Charge{}, f.failWrites
	}
	for i, ch := range f.charges[tenantID] {
		if ch.ID != chargeID {
			continue
		}
		if ch.Status != billing.ChargePending {
			return ch, billing.ErrInvalidState
		}
		apply(&f.charges[tenantID][i])
		return f.charges[tenantID][i], nil
	}
	return billing.Charge{}, billing.ErrNotFound
}

func (f *fakeStore) MarkChargePaid(_ context.Context, tenantID, chargeID string) (billing.Charge, error) {
	f.record("MarkChargePaid")
	return f.updateCharge(tenantID, chargeID, func(ch *billing.Charge) { ch.Status = billing.ChargePaid })
}

func (f *fakeStore) PostponeCharge(_ context.Context, tenantID, chargeID string, days int) (billing.Charge, error) {
	f.record("PostponeCharge")
	return f.updateCharge(tenantID, chargeID, func(ch *billing.Charge) { ch.DueDate = ch.DueDate.AddDate(0, 0, days) })
}

func (f *fakeStore) CancelCharge(_ context.Context, tenantID, chargeID string) (billing.Charge, error) {
	f.record("CancelCharge")
	return f.updateCharge(tenantID, chargeID, func(ch *billing.Charge) { ch.Status = billing.ChargeCancelled })
}

func (f *fakeStore) ListCharges(_ context.Context, tenantID string, filter billing.ChargeFilter) ([]billing.Charge, error) {
	f.record("ListCharges")
	var out []billing.Charge
	for _, ch := range f.charges[tenantID] {
		if filter.CustomerID != "" && ch.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && ch.Status != filter.Status {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

func (f *fakeStore) ResolveCategory(_ context.Context, tenantID, name string) (billing.Category, error) {
	f.record("ResolveCategory")
	for _, c := range f.categories[tenantID] {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	c := billing.Category{ID: uuid.NewString(), TenantID: tenantID, Name: name}
	f.categories[tenantID] = append(f.categories[tenantID], c)
	return c, nil
}

func (f *fakeStore) CreateExpense(_ context.Context, tenantID string, in billing.NewExpense) (billing.Expense, error) {
	f.record("CreateExpense")
	if f.failWrites != nil {
		return billing.Expense{}, f.failWrites
	}
	e := f.addExpense(tenantID, in.Description, in.Amount, in.DueDate)
	e.CategoryID = in.CategoryID
	return e, nil
}

func (f *fakeStore) DeleteExpense(_ context.Context, tenantID, expenseID string) (billing.Expense, error) {
	f.record("DeleteExpense")
	if f.failWrites != nil {
		return billing.Expense{}, f.failWrites
	}
	list := f.expenses[tenantID]
	for i, e := range list {
		if e.ID == expenseID {
			f.expenses[tenantID] = append(list[:i:i], list[i+1:]...)
			return e, nil
		}
	}
	return billing.Expense{}, billing.ErrNotFound
}

func (f *fakeStore) MarkExpensePaid(_ context.Context, tenantID, expenseID string) (billing.Expense, error) {
	f.record("MarkExpensePaid")
	for i, e := range f.expenses[tenantID] {
		if e.ID == expenseID {
			if e.Status != billing.ExpensePending {
				return e, billing.ErrInvalidState
			}
			f.expenses[tenantID][i].Status = billing.ExpensePaid
			return f.expenses[tenantID][i], nil
		}
	}
	return billing.Expense{}, billing.ErrNotFound
}

func (f *fakeStore) ListExpenses(_ context.Context, tenantID, status string, _ int) ([]billing.Expense, error) {
	f.record("ListExpenses")
	var out []billing.Expense
	for _, e := range f.expenses[tenantID] {
		if status == "" || e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPlans(_ context.Context, tenantID string) ([]billing.Plan, error) {
	f.record("ListPlans")
	return f.plans[tenantID], nil
}

func (f *fakeStore) CreateHandoff(_ context.Context, tenantID, sessionID, actorID, reason string) (billing.Handoff, error) {
	f.record("CreateHandoff")
	return billing.Handoff{ID: uuid.NewString(), TenantID: tenantID, SessionID: sessionID, ActorID: actorID, Reason: reason, CreatedAt: time.Now()}, nil
}

// stubConfigs serves fixed tenant configs.
type stubConfigs struct {
	configs map[string]*tenantconfig.Config
}

func (s *stubConfigs) Get(_ context.Context, tenantID string) (*tenantconfig.Config, error) {
	if cfg, ok := s.configs[tenantID]; ok {
		copied := *cfg
		return &copied, nil
	}
	return tenantconfig.DefaultConfig(tenantID), nil
}

// scriptedClient returns canned replies and remembers the last request.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	last    llm.Request
	// structured makes the client report a JSON output mode.
	structured bool
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) SupportsStructuredReply(llm.Request) bool { return c.structured }

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last = req
	if c.err != nil {
		return llm.Response{}, c.err
	}
	if len(c.replies) == 0 {
		return llm.Response{Text: "ok"}, nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return llm.Response{Text: reply, Model: "scripted-1", Structured: c.structured && req.Reply != nil}, nil
}

type stubGateway struct {
	client *scriptedClient
}

func (g *stubGateway) NewClient(_ context.Context, _ llm.Settings) (llm.Client, error) {
	return g.client, nil
}

// memoryConfirmations is an in-process ConfirmationStore.
type memoryConfirmations struct {
	mu      sync.Mutex
	pending map[string]PendingAction
}

func newMemoryConfirmations() *memoryConfirmations {
	return &memoryConfirmations{pending: map[string]PendingAction{}}
}

func (m *memoryConfirmations) Save(_ context.Context, tenantID, sessionID string, p PendingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[tenantID+"/"+sessionID] = p
	return nil
}

func (m *memoryConfirmations) Load(_ context.Context, tenantID, sessionID string) (*PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[tenantID+"/"+sessionID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memoryConfirmations) Delete(_ context.Context, tenantID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, tenantID+"/"+sessionID)
	return nil
}

// memoryActionLog counts entries per session.
type memoryActionLog struct {
	mu      sync.Mutex
	entries []auditlog.Entry
}

func (l *memoryActionLog) Record(_ context.Context, e auditlog.Entry) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	var n int64
	for _, x := range l.entries {
		if x.SessionID == e.SessionID {
			n++
		}
	}
	return n, nil
}

func (l *memoryActionLog) ListBySession(_ context.Context, tenantID, sessionID string, _ int) ([]auditlog.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []auditlog.Entry
	for _, e := range l.entries {
		if e.TenantID == tenantID && e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

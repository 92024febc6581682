package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

var customerCols = []string{"id", "tenant_id", "name", "email", "phone", "document", "reseller_id", "status", "created_at"}
var chargeCols = []string{"id", "tenant_id", "customer_id", "name", "amount", "due_date", "status", "description", "paid_at"}
var expenseCols = []string{"id", "tenant_id", "description", "amount", "due_date", "category_id", "category", "status", "paid_at"}

func TestNewPostgresStore_PanicsWithoutDB(t *testing.T) {
	assert.Panics(t, func() { NewPostgresStore(nil) })
}

func TestOperatorSummary(t *testing.T) {
	store, mock := newMockStore(t)
	expires := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT").
		WithArgs("tenant-a").
		WillReturnRows(pgxmock.NewRows([]string{"customers", "resellers", "services", "mrr", "overdue", "overdue_total", "received"}).
			AddRow(12, 2, 9, 4500.0, 3, 900.0, 1200.0))
	mock.ExpectQuery("FROM services s").
		WithArgs("tenant-a", expiringWindowDays, "", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "customer", "expires_at"}).
			AddRow("svc-1", "Hosting", "Acme", expires))

	summary, err := store.OperatorSummary(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 12, summary.Customers)
	assert.Equal(t, 3, summary.OverdueCount)
	assert.InDelta(t, 900.0, summary.OverdueTotal, 0.001)
	require.Len(t, summary.ExpiringServices, 1)
	assert.Equal(t, "Acme", summary.ExpiringServices[0].CustomerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerSummary_EmptyCustomerIDSkipsQueries(t *testing.T) {
	store, mock := newMockStore(t)

	summary, err := store.CustomerSummary(context.Background(), "tenant-a", "")
	require.NoError(t, err)
	assert.Empty(t, summary.PendingCharges)
	assert.Empty(t, summary.ActiveServices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerSummary_MalformedCustomerIDSkipsQueries(t *testing.T) {
	store, mock := newMockStore(t)

	summary, err := store.CustomerSummary(context.Background(), "tenant-a", "cliente-42")
	require.NoError(t, err)
	assert.Zero(t, summary.PendingTotal)
	assert.Empty(t, summary.PendingCharges)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResellerSummary_MissingResellerIDIsEmpty(t *testing.T) {
	for _, id := range []string{"", "rev-7"} {
		store, mock := newMockStore(t)

		summary, err := store.ResellerSummary(context.Background(), "tenant-a", id)
		require.NoError(t, err, id)
		assert.Zero(t, summary.Customers)
		assert.Empty(t, summary.OverduePreview)
		assert.Empty(t, summary.ExpiringServices)
		assert.NoError(t, mock.ExpectationsWereMet(), id)
	}
}

func TestListCharges_BuildsFilterArgs(t *testing.T) {
	store, mock := newMockStore(t)
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	paid := due.Add(time.Hour)

	mock.ExpectQuery("ch.status = \\$2 AND c.reseller_id::text = \\$3").
		WithArgs("tenant-a", ChargePending, "reseller-1", previewLimit).
		WillReturnRows(pgxmock.NewRows(chargeCols).
			AddRow("ch-1", "tenant-a", "cust-1", "Acme", 150.0, due, ChargePending, "", &paid))

	charges, err := store.ListCharges(context.Background(), "tenant-a", ChargeFilter{
		Status:      ChargePending,
		ResellerID:  "reseller-1",
		OverdueOnly: true,
		Limit:       previewLimit,
	})
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, "Acme", charges[0].CustomerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkChargePaid_RejectsSettledCharge(t *testing.T) {
	store, mock := newMockStore(t)
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	paid := due.Add(24 * time.Hour)

	mock.ExpectExec("UPDATE charges SET status = 'paid'").
		WithArgs("tenant-a", "ch-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM charges ch").
		WithArgs("tenant-a", "ch-1").
		WillReturnRows(pgxmock.NewRows(chargeCols).
			AddRow("ch-1", "tenant-a", "cust-1", "Acme", 150.0, due, ChargePaid, "", &paid))

	_, err := store.MarkChargePaid(context.Background(), "tenant-a", "ch-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelCharge_NotFoundInTenant(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE charges SET status = 'cancelled'").
		WithArgs("tenant-b", "ch-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM charges ch").
		WithArgs("tenant-b", "ch-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.CancelCharge(context.Background(), "tenant-b", "ch-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostponeCharge_RequiresPositiveDays(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.PostponeCharge(context.Background(), "tenant-a", "ch-1", 0)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCustomer(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO customers").
		WithArgs("tenant-a", "Maria Souza", "maria@example.com", "", "", "reseller-1").
		WillReturnRows(pgxmock.NewRows(customerCols).
			AddRow("cust-1", "tenant-a", "Maria Souza", "maria@example.com", "", "", "reseller-1", "active", created))

	c, err := store.CreateCustomer(context.Background(), "tenant-a", NewCustomer{
		Name:       "  Maria Souza ",
		Email:      "maria@example.com",
		ResellerID: "reseller-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", c.ID)
	assert.Equal(t, "reseller-1", c.ResellerID)

	_, err = store.CreateCustomer(context.Background(), "tenant-a", NewCustomer{Name: "  "})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCustomersByName(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now().UTC()

	mock.ExpectQuery(`strpos\(lower\(name\), lower\(\$2\)\)`).
		WithArgs("tenant-a", "maria").
		WillReturnRows(pgxmock.NewRows(customerCols).
			AddRow("cust-1", "tenant-a", "Maria", "", "", "", "", "active", created).
			AddRow("cust-2", "tenant-a", "Maria Clara", "", "", "", "", "active", created))

	found, err := store.FindCustomersByName(context.Background(), "tenant-a", " maria ")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	none, err := store.FindCustomersByName(context.Background(), "tenant-a", "")
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCustomersByName_WildcardsAreLiteral(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("strpos").
		WithArgs("tenant-a", "_").
		WillReturnRows(pgxmock.NewRows(customerCols))

	found, err := store.FindCustomersByName(context.Background(), "tenant-a", "_")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveCategory_ExistingAndCreated(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM expense_categories").
		WithArgs("tenant-a", "Rent").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name"}).AddRow("cat-1", "tenant-a", "rent"))

	c, err := store.ResolveCategory(context.Background(), "tenant-a", "Rent")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", c.ID)

	mock.ExpectQuery("FROM expense_categories").
		WithArgs("tenant-a", "Utilities").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO expense_categories").
		WithArgs("tenant-a", "Utilities").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "name"}).AddRow("cat-2", "tenant-a", "Utilities"))

	c, err = store.ResolveCategory(context.Background(), "tenant-a", "Utilities")
	require.NoError(t, err)
	assert.Equal(t, "cat-2", c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateExpense_Validates(t *testing.T) {
	store, mock := newMockStore(t)
	due := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)
	paid := due

	_, err := store.CreateExpense(context.Background(), "tenant-a", NewExpense{Description: "Rent", Amount: 0, DueDate: due})
	assert.Error(t, err)

	mock.ExpectQuery("INSERT INTO expenses").
		WithArgs("tenant-a", "Rent", 1500.0, due, "cat-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "description", "amount", "due_date", "category_id", "status", "paid_at"}).
			AddRow("exp-1", "tenant-a", "Rent", 1500.0, due, "cat-1", ExpensePending, &paid))

	e, err := store.CreateExpense(context.Background(), "tenant-a", NewExpense{Description: "Rent", Amount: 1500, DueDate: due, CategoryID: "cat-1"})
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, e.Amount, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpense(t *testing.T) {
	store, mock := newMockStore(t)
	due := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)
	paid := due

	mock.ExpectQuery("FROM expenses e").
		WithArgs("tenant-a", "exp-1").
		WillReturnRows(pgxmock.NewRows(expenseCols).
			AddRow("exp-1", "tenant-a", "Rent", 1500.0, due, "cat-1", "Rent", ExpensePending, &paid))
	mock.ExpectExec("DELETE FROM expenses").
		WithArgs("tenant-a", "exp-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	e, err := store.DeleteExpense(context.Background(), "tenant-a", "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "Rent", e.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHandoff(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO human_handoffs").
		WithArgs("tenant-a", "sess-1", "user-1", "wants a person").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("h-1", now))

	h, err := store.CreateHandoff(context.Background(), "tenant-a", "sess-1", "user-1", " wants a person ")
	require.NoError(t, err)
	assert.Equal(t, "h-1", h.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

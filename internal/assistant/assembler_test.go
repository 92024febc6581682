package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/billing-assistant/internal/billing"
)

func TestAssembler_TierQuerySets(t *testing.T) {
	tests := []struct {
		tier         RoleTier
		summaryCall  string
		wantExpenses bool
	}{
		{TierOperator, "OperatorSummary", true},
		{TierAdmin, "AdminSummary", true},
		{TierReseller, "ResellerSummary:r1", true},
		{TierCustomer, "CustomerSummary:c1", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			store := newFakeStore()
			actorID := "u1"
			if tt.tier == TierReseller {
				actorID = "r1"
			}
			cc, err := NewAssembler(store).Assemble(context.Background(), "tenant-a", Actor{ID: actorID, Tier: tt.tier, CustomerID: "c1"}, Profile{Personality: "p"})
			require.NoError(t, err)

			assert.True(t, store.called(tt.summaryCall))
			assert.Equal(t, tt.wantExpenses, store.called("ExpenseSummary"))
			_, hasExpenses := cc.Snapshot[keyExpensesPending]
			assert.Equal(t, tt.wantExpenses, hasExpenses)
			assert.True(t, store.called("KnowledgeBase"))
			assert.Equal(t, "p", cc.Personality)
		})
	}
}

func TestAssembler_CustomerWithoutBillingIdentity(t *testing.T) {
	store := newFakeStore()
	c := store.addCustomer("tenant-a", "Acme", "")
	store.addCharge("tenant-a", c, 100, time.Now())

	cc, err := NewAssembler(store).Assemble(context.Background(), "tenant-a", Actor{ID: "u9", Tier: TierCustomer}, Profile{})
	require.NoError(t, err)
	assert.Empty(t, cc.Snapshot[keyPendingCharges])
	assert.Empty(t, ComputeAlerts(cc.Snapshot, time.Now()))
}

func TestAssembler_TenantIsolation(t *testing.T) {
	store := newFakeStore()
	a := store.addCustomer("tenant-a", "Alpha", "")
	b := store.addCustomer("tenant-b", "Bravo", "")
	store.addCharge("tenant-a", a, 10, time.Now())
	chargeB := store.addCharge("tenant-b", b, 20, time.Now())

	cc, err := NewAssembler(store).Assemble(context.Background(), "tenant-a", Actor{ID: "u1", Tier: TierAdmin}, Profile{})
	require.NoError(t, err)

	previews, ok := cc.Snapshot[keyOverduePreview].([]billing.ChargePreview)
	require.True(t, ok)
	for _, p := range previews {
		assert.NotEqual(t, chargeB.ID, p.ID)
		assert.NotEqual(t, "Bravo", p.CustomerName)
	}
}

func TestAssembler_UnknownTier(t *testing.T) {
	_, err := NewAssembler(newFakeStore()).Assemble(context.Background(), "tenant-a", Actor{Tier: "guest"}, Profile{})
	assert.Error(t, err)
}

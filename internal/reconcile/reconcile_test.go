package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

func tx(amount int64, status entity.TransactionStatus) *entity.Transaction {
	return &entity.Transaction{Amount: amount, Status: status}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		current  entity.OrderStatus
		total    int64
		txs      []*entity.Transaction
		expected entity.OrderStatus
	}{
		{
			name:     "all paid moves to paid",
			current:  entity.OrderAwaitingPayment,
			total:    1_000_000,
			txs:      []*entity.Transaction{tx(400_000, entity.TransactionPaid), tx(600_000, entity.TransactionPaid)},
			expected: entity.OrderPaid,
		},
		{
			name:     "pending instalment keeps awaiting payment",
			current:  entity.OrderAwaitingPayment,
			total:    1_000_000,
			txs:      []*entity.Transaction{tx(400_000, entity.TransactionPaid), tx(600_000, entity.TransactionPending)},
			expected: entity.OrderAwaitingPayment,
		},
		{
			name:     "sole payment cancelled reverts to approved",
			current:  entity.OrderAwaitingPayment,
			total:    500_000,
			txs:      []*entity.Transaction{tx(500_000, entity.TransactionCancelled)},
			expected: entity.OrderApproved,
		},
		{
			name:    "cancelled instalment keeps order awaiting payment",
			current: entity.OrderAwaitingPayment,
			total:   1_000_000,
			txs: []*entity.Transaction{
				tx(400_000, entity.TransactionPaid),
				tx(300_000, entity.TransactionCancelled),
				tx(300_000, entity.TransactionPending),
			},
			expected: entity.OrderAwaitingPayment,
		},
		{
			name:    "paid shortfall after cancellation never reaches paid",
			current: entity.OrderAwaitingPayment,
			total:   1_000_000,
			txs: []*entity.Transaction{
				tx(400_000, entity.TransactionPaid),
				tx(300_000, entity.TransactionCancelled),
				tx(300_000, entity.TransactionPaid),
			},
			expected: entity.OrderAwaitingPayment,
		},
		{
			name:    "reissued shortfall paid in full moves to paid",
			current: entity.OrderAwaitingPayment,
			total:   1_000_000,
			txs: []*entity.Transaction{
				tx(400_000, entity.TransactionPaid),
				tx(300_000, entity.TransactionCancelled),
				tx(300_000, entity.TransactionPaid),
				tx(300_000, entity.TransactionPaid),
			},
			expected: entity.OrderPaid,
		},
		{
			name:     "no transactions yet reverts to approved",
			current:  entity.OrderAwaitingPayment,
			total:    500_000,
			txs:      nil,
			expected: entity.OrderApproved,
		},
		{
			name:     "draft order is untouched",
			current:  entity.OrderDraft,
			total:    500_000,
			txs:      []*entity.Transaction{tx(500_000, entity.TransactionPaid)},
			expected: entity.OrderDraft,
		},
		{
			name:     "shipped order is untouched",
			current:  entity.OrderShipped,
			total:    500_000,
			txs:      []*entity.Transaction{tx(500_000, entity.TransactionCancelled)},
			expected: entity.OrderShipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.current, tt.total, tt.txs)
			assert.Equal(t, tt.expected, got)

			// Re-running with the same inputs must not change the result.
			assert.Equal(t, got, Derive(got, tt.total, tt.txs))
		})
	}
}

func TestPlanExists(t *testing.T) {
	assert.False(t, PlanExists(nil))
	assert.False(t, PlanExists([]*entity.Transaction{tx(100, entity.TransactionCancelled)}))
	assert.True(t, PlanExists([]*entity.Transaction{
		tx(100, entity.TransactionCancelled),
		tx(100, entity.TransactionPending),
	}))
}

func TestActiveTotal(t *testing.T) {
	txs := []*entity.Transaction{
		tx(400_000, entity.TransactionPaid),
		tx(300_000, entity.TransactionCancelled),
		tx(300_000, entity.TransactionPending),
	}
	assert.Equal(t, int64(700_000), ActiveTotal(txs))
}

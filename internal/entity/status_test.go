package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTokens(t *testing.T) {
	tokens := map[OrderStatus]string{
		OrderDraft:            "PS",
		OrderPendingApproval:  "P",
		OrderApproved:         "A",
		OrderRejected:         "D",
		OrderCancelled:        "C",
		OrderAwaitingPayment:  "PP",
		OrderPaid:             "PD",
		OrderAwaitingShipment: "PSE",
		OrderShipped:          "S",
		OrderDelivered:        "DE",
	}

	for status, token := range tokens {
		assert.Equal(t, token, status.Token())

		parsed, err := ParseOrderStatus(token)
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}

	_, err := ParseOrderStatus("XX")
	assert.Error(t, err)
}

func TestOrderTransitionTable(t *testing.T) {
	legal := []struct {
		from, to OrderStatus
	}{
		{OrderDraft, OrderPendingApproval},
		{OrderDraft, OrderCancelled},
		{OrderPendingApproval, OrderApproved},
		{OrderPendingApproval, OrderRejected},
		{OrderPendingApproval, OrderCancelled},
		{OrderApproved, OrderAwaitingPayment},
		{OrderApproved, OrderCancelled},
		{OrderAwaitingPayment, OrderPaid},
		{OrderAwaitingPayment, OrderApproved},
		{OrderAwaitingPayment, OrderCancelled},
		{OrderPaid, OrderAwaitingShipment},
		{OrderAwaitingShipment, OrderShipped},
		{OrderShipped, OrderDelivered},
	}
	legalSet := make(map[[2]OrderStatus]bool, len(legal))
	for _, tr := range legal {
		legalSet[[2]OrderStatus{tr.from, tr.to}] = true
		assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s must be legal", tr.from, tr.to)
	}

	all := []OrderStatus{
		OrderDraft, OrderPendingApproval, OrderApproved, OrderRejected,
		OrderCancelled, OrderAwaitingPayment, OrderPaid, OrderAwaitingShipment,
		OrderShipped, OrderDelivered,
	}
	for _, from := range all {
		for _, to := range all {
			if !legalSet[[2]OrderStatus{from, to}] {
				assert.False(t, from.CanTransition(to), "%s -> %s must be illegal", from, to)
			}
		}
	}
}

func TestOrderInternalTransitionsAreNotExternal(t *testing.T) {
	internal := []struct {
		from, to OrderStatus
	}{
		{OrderApproved, OrderAwaitingPayment},
		{OrderAwaitingPayment, OrderPaid},
		{OrderAwaitingPayment, OrderApproved},
	}
	for _, tr := range internal {
		assert.True(t, tr.from.CanTransition(tr.to))
		assert.False(t, tr.from.CanExternalTransition(tr.to), "%s -> %s must be internal only", tr.from, tr.to)
	}

	assert.True(t, OrderDraft.CanExternalTransition(OrderPendingApproval))
	assert.True(t, OrderAwaitingPayment.CanExternalTransition(OrderCancelled))
}

func TestOrderEditable(t *testing.T) {
	assert.True(t, OrderDraft.Editable())
	assert.True(t, OrderPendingApproval.Editable())

	for _, s := range []OrderStatus{
		OrderApproved, OrderRejected, OrderCancelled, OrderAwaitingPayment,
		OrderPaid, OrderAwaitingShipment, OrderShipped, OrderDelivered,
	} {
		assert.False(t, s.Editable(), "%s must not be editable", s)
	}
}

func TestTransactionStatusTokens(t *testing.T) {
	tokens := map[TransactionStatus]string{
		TransactionPending:   "p",
		TransactionPaid:      "d",
		TransactionCancelled: "c",
	}
	for status, token := range tokens {
		assert.Equal(t, token, status.Token())

		parsed, err := ParseTransactionStatus(token)
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}

	_, err := ParseTransactionStatus("x")
	assert.Error(t, err)
}

func TestTransactionTransitions(t *testing.T) {
	assert.True(t, TransactionPending.CanTransition(TransactionPaid))
	assert.True(t, TransactionPending.CanTransition(TransactionCancelled))

	for _, terminal := range []TransactionStatus{TransactionPaid, TransactionCancelled} {
		for _, to := range []TransactionStatus{TransactionPending, TransactionPaid, TransactionCancelled} {
			assert.False(t, terminal.CanTransition(to), "%s is terminal", terminal)
		}
	}
}

func TestStatusScanValueRoundTrip(t *testing.T) {
	var s OrderStatus
	require.NoError(t, s.Scan("PSE"))
	assert.Equal(t, OrderAwaitingShipment, s)

	v, err := s.Value()
	require.NoError(t, err)
	assert.Equal(t, "PSE", v)

	var ts TransactionStatus
	require.NoError(t, ts.Scan([]byte("d")))
	assert.Equal(t, TransactionPaid, ts)

	_, err = OrderStatus(0).Value()
	assert.Error(t, err)
}

func TestOrderTotalPriceDerived(t *testing.T) {
	order := &Order{
		Items: []*OrderItem{
			{VariantID: 1, UnitPrice: 250_000, Quantity: 2},
			{VariantID: 2, UnitPrice: 500_000, Quantity: 1},
		},
	}
	assert.Equal(t, int64(1_000_000), order.TotalPrice())
	assert.Equal(t, int64(500_000), order.ItemByVariant(2).TotalPrice())
	assert.Nil(t, order.ItemByVariant(3))
}

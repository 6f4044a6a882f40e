// Package reconcile derives an order's status from the state of its
// payment transactions. Derivation is a pure function of its inputs, so
// re-running it for the same transaction set always yields the same
// status; callers apply it inside the same database transaction as the
// transaction mutation that triggered it.
package reconcile

import (
	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

// PlanExists reports whether the order still has a live payment plan,
// i.e. at least one non-cancelled transaction.
func PlanExists(txs []*entity.Transaction) bool {
	for _, tx := range txs {
		if tx.Status != entity.TransactionCancelled {
			return true
		}
	}
	return false
}

// ActiveTotal sums the amounts of all non-cancelled transactions.
func ActiveTotal(txs []*entity.Transaction) int64 {
	var total int64
	for _, tx := range txs {
		if tx.Status != entity.TransactionCancelled {
			total += tx.Amount
		}
	}
	return total
}

// Derive recomputes the order status for the given transaction set.
//
// Only an order awaiting payment can move: when no live transactions
// remain the order reverts to Approved so a plan can be generated again;
// when every live transaction is paid and their amounts cover the full
// order total, the order becomes Paid. A partially cancelled multi-part
// plan keeps the order awaiting payment with its owed total intact until
// an administrator reissues the shortfall.
func Derive(current entity.OrderStatus, orderTotal int64, txs []*entity.Transaction) entity.OrderStatus {
	if current != entity.OrderAwaitingPayment {
		return current
	}

	var (
		liveCount int
		liveTotal int64
		allPaid   = true
	)
	for _, tx := range txs {
		if tx.Status == entity.TransactionCancelled {
			continue
		}
		liveCount++
		liveTotal += tx.Amount
		if tx.Status != entity.TransactionPaid {
			allPaid = false
		}
	}

	if liveCount == 0 {
		return entity.OrderApproved
	}
	if allPaid && liveTotal == orderTotal {
		return entity.OrderPaid
	}
	return current
}

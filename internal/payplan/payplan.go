// Package payplan expands a payment selection into the ordered sequence of
// transaction specifications for an order. It is pure: no storage, no
// clock of its own, and its output amounts always sum to the order total.
package payplan

import (
	"fmt"
	"time"

	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
	"github.com/AFrenchWrench/ustat-orders/pkg/money"
)

// Selection is the customer's payment choice: everything now, or an
// upfront fraction followed by post-dated cheques.
type Selection struct {
	UpfrontPercent int
	CheckCount     int
}

// Spec describes one transaction to be created for the plan.
type Spec struct {
	Title   string
	Amount  int64
	DueDate time.Time
	IsCheck bool
}

const (
	minChecks = 2
	maxChecks = 8
)

// Validate checks the selection against the supported combinations:
// (100, 0) for full payment, or upfront in {30,40,50,60} with 2..8 cheques.
func (s Selection) Validate() error {
	if s.UpfrontPercent == 100 && s.CheckCount == 0 {
		return nil
	}

	switch s.UpfrontPercent {
	case 30, 40, 50, 60:
	default:
		return errorbank.Validation("unsupported upfront percentage",
			errorbank.WithDetail("upfront", s.UpfrontPercent))
	}

	if s.CheckCount < minChecks || s.CheckCount > maxChecks {
		return errorbank.Validation("unsupported cheque count",
			errorbank.WithDetail("checks", s.CheckCount))
	}
	return nil
}

// IsFull reports whether the selection is a single full payment.
func (s Selection) IsFull() bool {
	return s.UpfrontPercent == 100 && s.CheckCount == 0
}

// Build expands the selection for the given order total. The upfront
// transaction is due immediately; each cheque is due one calendar month
// after the previous transaction.
func Build(total int64, sel Selection, now time.Time) ([]Spec, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, errorbank.Validation("order has no payable total")
	}

	if sel.IsFull() {
		return []Spec{{
			Title:   "Full payment",
			Amount:  total,
			DueDate: now,
		}}, nil
	}

	upfront, err := money.Percent(total, sel.UpfrontPercent)
	if err != nil {
		return nil, errorbank.Validation("invalid payment selection", errorbank.WithCause(err))
	}

	shares, err := money.Split(total-upfront, sel.CheckCount)
	if err != nil {
		return nil, errorbank.Validation("invalid payment selection", errorbank.WithCause(err))
	}

	specs := make([]Spec, 0, 1+sel.CheckCount)
	specs = append(specs, Spec{
		Title:   "Upfront payment",
		Amount:  upfront,
		DueDate: now,
	})

	due := now
	for i, share := range shares {
		due = due.AddDate(0, 1, 0)
		specs = append(specs, Spec{
			Title:   fmt.Sprintf("Cheque %d of %d", i+1, sel.CheckCount),
			Amount:  share,
			DueDate: due,
			IsCheck: true,
		})
	}

	if err := verifySum(total, specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// verifySum guards the exact-sum invariant. A failure here is a defect;
// the caller must roll back rather than persist an inconsistent plan.
func verifySum(total int64, specs []Spec) error {
	var sum int64
	for _, spec := range specs {
		sum += spec.Amount
	}
	if sum != total {
		return errorbank.AmountMismatch("plan amounts do not sum to order total",
			errorbank.WithDetail("total", total),
			errorbank.WithDetail("sum", sum))
	}
	return nil
}

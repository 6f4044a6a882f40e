package entity

import (
	"database/sql/driver"
	"fmt"
)

// OrderStatus enumerates the order workflow states. Persistence and wire
// formats use the short legacy tokens; everything else goes through this
// closed enum and its transition table.
type OrderStatus uint8

const (
	OrderDraft OrderStatus = iota + 1
	OrderPendingApproval
	OrderApproved
	OrderRejected
	OrderCancelled
	OrderAwaitingPayment
	OrderPaid
	OrderAwaitingShipment
	OrderShipped
	OrderDelivered
)

var orderTokens = map[OrderStatus]string{
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

var orderNames = map[OrderStatus]string{
	OrderDraft:            "draft",
	OrderPendingApproval:  "pending_approval",
	OrderApproved:         "approved",
	OrderRejected:         "rejected",
	OrderCancelled:        "cancelled",
	OrderAwaitingPayment:  "awaiting_payment",
	OrderPaid:             "paid",
	OrderAwaitingShipment: "awaiting_shipment",
	OrderShipped:          "shipped",
	OrderDelivered:        "delivered",
}

var orderTokenIndex = func() map[string]OrderStatus {
	m := make(map[string]OrderStatus, len(orderTokens))
	for s, tok := range orderTokens {
		m[tok] = s
	}
	return m
}()

// orderTransitions is the authoritative transition table. The value marks
// whether the transition may be requested by an external caller; false
// means it is driven internally (plan generation, reconciliation).
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderDraft: {
		OrderPendingApproval: true,
		OrderCancelled:       true,
	},
	OrderPendingApproval: {
		OrderApproved:  true,
		OrderRejected:  true,
		OrderCancelled: true,
	},
	OrderApproved: {
		OrderAwaitingPayment: false,
		OrderCancelled:       true,
	},
	OrderAwaitingPayment: {
		OrderPaid:      false,
		OrderApproved:  false,
		OrderCancelled: true,
	},
	OrderPaid: {
		OrderAwaitingShipment: true,
	},
	OrderAwaitingShipment: {
		OrderShipped: true,
	},
	OrderShipped: {
		OrderDelivered: true,
	},
}

// ParseOrderStatus resolves a wire token into an OrderStatus.
func ParseOrderStatus(token string) (OrderStatus, error) {
	s, ok := orderTokenIndex[token]
	if !ok {
		return 0, fmt.Errorf("unknown order status token: %q", token)
	}
	return s, nil
}

// Token returns the short wire token for the status.
func (s OrderStatus) Token() string {
	return orderTokens[s]
}

// String returns a readable name for logs.
func (s OrderStatus) String() string {
	if name, ok := orderNames[s]; ok {
		return name
	}
	return fmt.Sprintf("order_status(%d)", uint8(s))
}

// Valid reports whether the status is a known member of the enum.
func (s OrderStatus) Valid() bool {
	_, ok := orderTokens[s]
	return ok
}

// CanTransition reports whether moving to target is legal at all.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	_, ok := orderTransitions[s][target]
	return ok
}

// CanExternalTransition reports whether an external caller may request the
// move. Internal transitions (into AwaitingPayment, into Paid, and the
// reconciliation revert to Approved) are excluded.
func (s OrderStatus) CanExternalTransition(target OrderStatus) bool {
	external, ok := orderTransitions[s][target]
	return ok && external
}

// Editable reports whether order items and the due date may still change.
func (s OrderStatus) Editable() bool {
	return s == OrderDraft || s == OrderPendingApproval
}

// Value implements driver.Valuer; the database stores wire tokens.
func (s OrderStatus) Value() (driver.Value, error) {
	tok, ok := orderTokens[s]
	if !ok {
		return nil, fmt.Errorf("invalid order status: %d", uint8(s))
	}
	return tok, nil
}

// Scan implements sql.Scanner.
func (s *OrderStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseOrderStatus(v)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		return s.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", src)
	}
}

// TransactionStatus enumerates the payment obligation states.
type TransactionStatus uint8

const (
	TransactionPending TransactionStatus = iota + 1
	TransactionPaid
	TransactionCancelled
)

var transactionTokens = map[TransactionStatus]string{
	TransactionPending:   "p",
	TransactionPaid:      "d",
	TransactionCancelled: "c",
}

var transactionNames = map[TransactionStatus]string{
	TransactionPending:   "pending_payment",
	TransactionPaid:      "paid",
	TransactionCancelled: "cancelled",
}

var transactionTokenIndex = func() map[string]TransactionStatus {
	m := make(map[string]TransactionStatus, len(transactionTokens))
	for s, tok := range transactionTokens {
		m[tok] = s
	}
	return m
}()

// Paid and Cancelled are terminal.
var transactionTransitions = map[TransactionStatus]map[TransactionStatus]bool{
	TransactionPending: {
		TransactionPaid:      true,
		TransactionCancelled: true,
	},
}

// ParseTransactionStatus resolves a wire token into a TransactionStatus.
func ParseTransactionStatus(token string) (TransactionStatus, error) {
	s, ok := transactionTokenIndex[token]
	if !ok {
		return 0, fmt.Errorf("unknown transaction status token: %q", token)
	}
	return s, nil
}

// Token returns the short wire token for the status.
func (s TransactionStatus) Token() string {
	return transactionTokens[s]
}

// String returns a readable name for logs.
func (s TransactionStatus) String() string {
	if name, ok := transactionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("transaction_status(%d)", uint8(s))
}

// Valid reports whether the status is a known member of the enum.
func (s TransactionStatus) Valid() bool {
	_, ok := transactionTokens[s]
	return ok
}

// CanTransition reports whether moving to target is legal.
func (s TransactionStatus) CanTransition(target TransactionStatus) bool {
	return transactionTransitions[s][target]
}

// Value implements driver.Valuer; the database stores wire tokens.
func (s TransactionStatus) Value() (driver.Value, error) {
	tok, ok := transactionTokens[s]
	if !ok {
		return nil, fmt.Errorf("invalid transaction status: %d", uint8(s))
	}
	return tok, nil
}

// Scan implements sql.Scanner.
func (s *TransactionStatus) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTransactionStatus(v)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	case []byte:
		return s.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TransactionStatus", src)
	}
}

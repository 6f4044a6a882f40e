package order

import (
	"time"

	"github.com/google/uuid"
)

// StatusChangedEvent is emitted whenever an order changes status, whether
// the move was requested externally or derived by reconciliation. The
// event id lets consumers deduplicate redelivered messages.
type StatusChangedEvent struct {
	EventID    string    `json:"event_id"`
	OrderID    int64     `json:"order_id"`
	Number     string    `json:"number"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEventID() string {
	return uuid.NewString()
}

package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order represents a purchase order together with its owned line items.
// The order total is never stored; it is always derived from the items.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64       `bun:",pk,autoincrement"`
	Number     string      `bun:"number,notnull,unique"`
	Status     OrderStatus `bun:"status,notnull"`
	AddressRef string      `bun:"address_ref,nullzero"`
	DueDate    time.Time   `bun:"due_date,nullzero"`
	CreatedAt  time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time   `bun:"updated_at,nullzero"`

	Items        []*OrderItem   `bun:"rel:has-many,join:id=order_id"`
	Transactions []*Transaction `bun:"rel:has-many,join:id=order_id"`
}

// TotalPrice derives the order total from its items.
func (o *Order) TotalPrice() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.TotalPrice()
	}
	return total
}

// ItemByVariant returns the line item holding the given catalog variant,
// or nil when the variant is not on the order yet.
func (o *Order) ItemByVariant(variantID int64) *OrderItem {
	for _, item := range o.Items {
		if item.VariantID == variantID {
			return item
		}
	}
	return nil
}

package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderItem is a line on an order. The unit price is captured when the item
// is added so later catalog price changes never affect an existing order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID        int64     `bun:",pk,autoincrement"`
	OrderID   int64     `bun:"order_id,notnull"`
	VariantID int64     `bun:"variant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	UnitPrice int64     `bun:"unit_price,notnull"`
	Quantity  int64     `bun:"quantity,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`

	Order *Order `bun:"rel:belongs-to,join:order_id=id"`
}

// TotalPrice is the line total.
func (i *OrderItem) TotalPrice() int64 {
	return i.UnitPrice * i.Quantity
}

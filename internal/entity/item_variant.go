package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ItemVariant is a read-only catalog reference. Catalog management lives in
// another service; this engine only resolves a variant to its current price
// when a line item is added.
type ItemVariant struct {
	bun.BaseModel `bun:"table:item_variants,alias:v"`

	ID        int64     `bun:",pk,autoincrement"`
	Type      string    `bun:"type,notnull"`
	Name      string    `bun:"name,notnull,unique"`
	Price     int64     `bun:"price,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

package entity

import "github.com/uptrace/bun"

// OrderSequence is the per-prefix counter behind order number generation.
// The row is locked while a number is allocated.
type OrderSequence struct {
	bun.BaseModel `bun:"table:order_sequences,alias:seq"`

	Prefix string `bun:"prefix,pk"`
	Value  int64  `bun:"value,notnull,default:0"`
}

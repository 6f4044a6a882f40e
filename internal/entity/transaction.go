package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Transaction is one discrete payment obligation against an order. Cheque
// transactions require an uploaded proof image before they can be paid.
type Transaction struct {
	bun.BaseModel `bun:"table:order_transactions,alias:t"`

	ID        int64             `bun:",pk,autoincrement"`
	OrderID   int64             `bun:"order_id,notnull"`
	Title     string            `bun:"title,notnull"`
	Amount    int64             `bun:"amount,notnull"`
	Status    TransactionStatus `bun:"status,notnull"`
	IsCheck   bool              `bun:"is_check,notnull"`
	ProofRef  string            `bun:"proof_ref,nullzero"`
	DueDate   time.Time         `bun:"due_date,nullzero"`
	CreatedAt time.Time         `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time         `bun:"updated_at,nullzero"`

	Order *Order `bun:"rel:belongs-to,join:order_id=id"`
}

// HasProof reports whether a proof image has been attached.
func (t *Transaction) HasProof() bool {
	return t.ProofRef != ""
}

package dto

import (
	"time"

	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

// TransactionResponse represents a payment transaction on the wire.
type TransactionResponse struct {
	ID           int64     `json:"id"`
	Order        int64     `json:"order"`
	Title        string    `json:"title"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	IsCheck      bool      `json:"is_check"`
	Proof        string    `json:"proof,omitempty"`
	DueDate      time.Time `json:"due_date"`
	CreationDate time.Time `json:"creation_date"`
}

// NewTransactionResponse maps a transaction to its wire form.
func NewTransactionResponse(tx *entity.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:           tx.ID,
		Order:        tx.OrderID,
		Title:        tx.Title,
		Amount:       tx.Amount,
		Status:       tx.Status.Token(),
		IsCheck:      tx.IsCheck,
		Proof:        tx.ProofRef,
		DueDate:      tx.DueDate,
		CreationDate: tx.CreatedAt,
	}
}

// NewTransactionResponses maps a batch of transactions.
func NewTransactionResponses(txs []*entity.Transaction) []*TransactionResponse {
	out := make([]*TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, NewTransactionResponse(tx))
	}
	return out
}

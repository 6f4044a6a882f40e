package dto

import (
	"time"

	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
// Status carries the legacy wire token; the total is derived from items.
type OrderResponse struct {
	ID           int64                  `json:"id"`
	Number       string                 `json:"order_number"`
	Status       string                 `json:"status"`
	Address      string                 `json:"address,omitempty"`
	DueDate      time.Time              `json:"due_date"`
	TotalPrice   int64                  `json:"total_price"`
	Items        []*OrderItemResponse   `json:"items,omitempty"`
	Transactions []*TransactionResponse `json:"transactions,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// OrderItemResponse represents one line item on an order.
type OrderItemResponse struct {
	ID         int64  `json:"id"`
	Variant    int64  `json:"variant"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int64  `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
}

// NewOrderResponse maps an order aggregate to its wire form.
func NewOrderResponse(order *entity.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:         order.ID,
		Number:     order.Number,
		Status:     order.Status.Token(),
		Address:    order.AddressRef,
		DueDate:    order.DueDate,
		TotalPrice: order.TotalPrice(),
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, NewOrderItemResponse(item))
	}
	for _, tx := range order.Transactions {
		resp.Transactions = append(resp.Transactions, NewTransactionResponse(tx))
	}
	return resp
}

// NewOrderItemResponse maps a line item to its wire form.
func NewOrderItemResponse(item *entity.OrderItem) *OrderItemResponse {
	return &OrderItemResponse{
		ID:         item.ID,
		Variant:    item.VariantID,
		Name:       item.Name,
		UnitPrice:  item.UnitPrice,
		Quantity:   item.Quantity,
		TotalPrice: item.TotalPrice(),
	}
}

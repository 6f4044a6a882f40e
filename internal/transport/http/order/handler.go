package order

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AFrenchWrench/ustat-orders/internal/dto"
	"github.com/AFrenchWrench/ustat-orders/internal/presentation/http/response"
	service "github.com/AFrenchWrench/ustat-orders/internal/service/order"
	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/AFrenchWrench/ustat-orders/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.update)
	g.POST("/items", h.createItem)
	g.PATCH("/items/:id", h.updateItem)
	g.DELETE("/items/:id", h.deleteItem)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Status  *string    `json:"status"`
		DueDate *time.Time `json:"due_date"`
		Address *string    `json:"address"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Update(ctx, service.UpdateInput{
		ID:      id,
		Status:  payload.Status,
		DueDate: payload.DueDate,
		Address: payload.Address,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) createItem(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Order    *int64     `json:"order"`
		Variant  int64      `json:"variant"`
		Quantity int64      `json:"quantity"`
		DueDate  *time.Time `json:"due_date"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.createItem", trace.WithAttributes(attribute.Int64("variant.id", payload.Variant)))
	defer span.End()

	order, item, err := h.svc.CreateItem(ctx, service.CreateItemInput{
		OrderID:  payload.Order,
		Variant:  payload.Variant,
		Quantity: payload.Quantity,
		DueDate:  payload.DueDate,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).
		WithData(dto.NewOrderItemResponse(item)).
		WithMeta("order", dto.NewOrderResponse(order)).
		Build()
}

func (h *Handler) updateItem(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Quantity int64 `json:"quantity"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateItem", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	item, err := h.svc.UpdateItem(ctx, id, payload.Quantity)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderItemResponse(item)).Build()
}

func (h *Handler) deleteItem(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.deleteItem", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	if err := h.svc.DeleteItem(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.Validation("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

package transaction

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AFrenchWrench/ustat-orders/internal/dto"
	"github.com/AFrenchWrench/ustat-orders/internal/payplan"
	"github.com/AFrenchWrench/ustat-orders/internal/presentation/http/response"
	service "github.com/AFrenchWrench/ustat-orders/internal/service/transaction"
	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/AFrenchWrench/ustat-orders/transport/http/transaction")

// Handler exposes payment transaction endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a transaction Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/transactions")
	g.POST("", h.createPlan)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.updateStatus)
	g.POST("/:id/proof", h.attachProof)
	g.POST("/reissue", h.reissue)
}

// createPlan expands a payment selection into the order's transactions.
// Repeating the call for an order already awaiting payment returns the
// existing plan with a 200 instead of a 201.
func (h *Handler) createPlan(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Order   int64 `json:"order"`
		Upfront int   `json:"upfront"`
		Checks  int   `json:"checks"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "transactions.createPlan", trace.WithAttributes(
		attribute.Int64("order.id", payload.Order),
		attribute.Int("plan.upfront", payload.Upfront),
		attribute.Int("plan.checks", payload.Checks),
	))
	defer span.End()

	txs, created, err := h.svc.GeneratePlan(ctx, payload.Order, payplan.Selection{
		UpfrontPercent: payload.Upfront,
		CheckCount:     payload.Checks,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return b.WithStatus(status).WithData(dto.NewTransactionResponses(txs)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "transactions.getByID", trace.WithAttributes(attribute.Int64("transaction.id", id)))
	defer span.End()

	tx, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTransactionResponse(tx)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "transactions.updateStatus", trace.WithAttributes(
		attribute.Int64("transaction.id", id),
		attribute.String("transaction.status", payload.Status),
	))
	defer span.End()

	tx, err := h.svc.UpdateStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTransactionResponse(tx)).Build()
}

// attachProof accepts a multipart upload carrying the proof image under
// the "proof" form field.
func (h *Handler) attachProof(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	file, err := c.FormFile("proof")
	if err != nil {
		return b.WithError(errorbank.Validation("proof file is required", errorbank.WithCause(err))).Build()
	}
	src, err := file.Open()
	if err != nil {
		return b.WithError(errorbank.Validation("proof file could not be read", errorbank.WithCause(err))).Build()
	}
	defer src.Close()

	ctx, span := httpTracer.Start(c.Request().Context(), "transactions.attachProof", trace.WithAttributes(attribute.Int64("transaction.id", id)))
	defer span.End()

	tx, err := h.svc.AttachProof(ctx, id, file.Filename, src)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewTransactionResponse(tx)).Build()
}

// reissue is the administrative endpoint for replacing a cancelled
// instalment with a fresh pending transaction.
func (h *Handler) reissue(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Order   int64     `json:"order"`
		Title   string    `json:"title"`
		Amount  int64     `json:"amount"`
		DueDate time.Time `json:"due_date"`
		IsCheck bool      `json:"is_check"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "transactions.reissue", trace.WithAttributes(attribute.Int64("order.id", payload.Order)))
	defer span.End()

	tx, err := h.svc.Reissue(ctx, service.ReissueInput{
		OrderID: payload.Order,
		Title:   payload.Title,
		Amount:  payload.Amount,
		DueDate: payload.DueDate,
		IsCheck: payload.IsCheck,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewTransactionResponse(tx)).Build()
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errorbank.Validation("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

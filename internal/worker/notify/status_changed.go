package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/AFrenchWrench/ustat-orders/internal/cache"
	"github.com/AFrenchWrench/ustat-orders/internal/config"
	"github.com/AFrenchWrench/ustat-orders/internal/entity"
	"github.com/AFrenchWrench/ustat-orders/internal/messaging"
	ordersvc "github.com/AFrenchWrench/ustat-orders/internal/service/order"
	"github.com/AFrenchWrench/ustat-orders/internal/worker"
)

var workerTracer = otel.Tracer("github.com/AFrenchWrench/ustat-orders/worker/notify")

// dedupTTL bounds how long processed event ids are remembered.
const dedupTTL = 24 * time.Hour

// Module registers the status change notification handler.
var Module = fx.Module("worker_notify",
	fx.Provide(
		fx.Annotate(
			NewStatusChangedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewStatusChangedHandler consumes order status change events and notifies
// downstream channels. Event ids are remembered in the cache so redelivered
// messages are acknowledged without notifying twice.
func NewStatusChangedHandler(logger *zap.Logger, cfg config.Config, store cache.Store) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.notify.statusChanged", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.StatusChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode status change event", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		if seen(ctx, store, event.EventID) {
			logger.Debug("duplicate status change event skipped", zap.String("event", event.EventID))
			return nil
		}

		logger.Info("order status changed",
			zap.Int64("order", event.OrderID),
			zap.String("number", event.Number),
			zap.String("from", event.From),
			zap.String("to", event.To),
		)
		notify(logger, event)

		markSeen(ctx, store, logger, event.EventID)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

// notify fans the change out to customer-facing channels. Only the moves a
// customer cares about produce a message; internal churn stays quiet.
func notify(logger *zap.Logger, event ordersvc.StatusChangedEvent) {
	to, err := entity.ParseOrderStatus(event.To)
	if err != nil {
		logger.Warn("status change event carries unknown status", zap.String("to", event.To))
		return
	}

	var text string
	switch to {
	case entity.OrderApproved:
		text = fmt.Sprintf("Order %s has been approved, a payment plan can now be chosen.", event.Number)
	case entity.OrderPaid:
		text = fmt.Sprintf("Payment for order %s is complete.", event.Number)
	case entity.OrderShipped:
		text = fmt.Sprintf("Order %s has been shipped.", event.Number)
	case entity.OrderDelivered:
		text = fmt.Sprintf("Order %s has been delivered.", event.Number)
	case entity.OrderRejected:
		text = fmt.Sprintf("Order %s was rejected.", event.Number)
	case entity.OrderCancelled:
		text = fmt.Sprintf("Order %s was cancelled.", event.Number)
	default:
		return
	}

	// The log line is the delivery channel until a mail gateway is wired.
	logger.Info("customer notification", zap.String("number", event.Number), zap.String("text", text))
}

func seen(ctx context.Context, store cache.Store, eventID string) bool {
	if store == nil || eventID == "" {
		return false
	}
	_, err := store.Get(ctx, dedupKey(eventID))
	return err == nil
}

func markSeen(ctx context.Context, store cache.Store, logger *zap.Logger, eventID string) {
	if store == nil || eventID == "" {
		return
	}
	if err := store.Set(ctx, dedupKey(eventID), []byte{1}, dedupTTL); err != nil {
		logger.Warn("failed to remember event id", zap.String("event", eventID), zap.Error(err))
	}
}

func dedupKey(eventID string) string {
	return "events:seen:" + eventID
}

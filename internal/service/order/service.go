package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
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
	repo "github.com/AFrenchWrench/ustat-orders/internal/repository/order"
	variantrepo "github.com/AFrenchWrench/ustat-orders/internal/repository/variant"
	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/AFrenchWrench/ustat-orders/service/order")

const (
	// minDueDateLead is the minimum lead time a caller may request.
	minDueDateLead = 15 * 24 * time.Hour
	// defaultDueDateLead is applied when a new order omits the due date.
	defaultDueDateLead = 25 * 24 * time.Hour

	orderNumberPrefix = "UST"
)

// Service owns the order aggregate: the order header, its line items, and
// all externally driven status transitions. Every mutation is serialized
// per order by locking the order row inside one database transaction.
type Service struct {
	orders    *repo.Repository
	variants  *variantrepo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    *repo.Repository
	Variants  *variantrepo.Repository
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		variants:  p.Variants,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// CreateItemInput carries the createOrderItem arguments. A nil OrderID
// creates a fresh draft order implicitly.
type CreateItemInput struct {
	OrderID  *int64
	Variant  int64
	Quantity int64
	DueDate  *time.Time
}

// UpdateInput carries the updateOrder arguments. Only supplied fields are
// touched; the status token must name an externally legal transition.
type UpdateInput struct {
	ID      int64
	Status  *string
	DueDate *time.Time
	Address *string
}

// Get retrieves an order with its items and transactions, consulting the
// cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// CreateItem adds a line item, creating a draft order first when no order
// is supplied. Adding a variant already on the order increments the
// existing line instead of duplicating it; the unit price is captured from
// the catalog at this moment and never changes afterwards.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (*entity.Order, *entity.OrderItem, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateItem", trace.WithAttributes(attribute.Int64("variant.id", input.Variant)))
	defer span.End()

	if input.Quantity < 1 {
		return nil, nil, errorbank.Validation("quantity must be at least 1", errorbank.WithDetail("quantity", input.Quantity))
	}

	variant, err := s.variants.GetByID(ctx, input.Variant)
	if err != nil {
		if errors.Is(err, variantrepo.ErrNotFound) {
			return nil, nil, errorbank.NotFound("item variant not found")
		}
		return nil, nil, errorbank.Internal("failed to resolve item variant", errorbank.WithCause(err))
	}

	var (
		order *entity.Order
		item  *entity.OrderItem
	)
	err = s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if input.OrderID == nil {
			created, err := s.createDraft(ctx, tx, input.DueDate)
			if err != nil {
				return err
			}
			order = created
		} else {
			existing, err := s.orders.GetForUpdate(ctx, tx, *input.OrderID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return errorbank.NotFound("order not found")
				}
				return errorbank.Internal("failed to load order", errorbank.WithCause(err))
			}
			if !existing.Status.Editable() {
				return errorbank.NotEditable("order items can no longer be changed",
					errorbank.WithDetail("status", existing.Status.Token()))
			}
			order = existing
		}

		if existing := order.ItemByVariant(variant.ID); existing != nil {
			existing.Quantity += input.Quantity
			if err := s.orders.UpdateItem(ctx, tx, existing, "quantity"); err != nil {
				return errorbank.Internal("failed to update order item", errorbank.WithCause(err))
			}
			item = existing
			return nil
		}

		item = &entity.OrderItem{
			OrderID:   order.ID,
			VariantID: variant.ID,
			Name:      variant.Name,
			UnitPrice: variant.Price,
			Quantity:  input.Quantity,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.orders.InsertItem(ctx, tx, item); err != nil {
			return errorbank.Internal("failed to add order item", errorbank.WithCause(err))
		}
		order.Items = append(order.Items, item)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	s.invalidateCache(ctx, order.ID)
	return order, item, nil
}

// UpdateItem changes the quantity of a line item while its order is still
// editable.
func (s *Service) UpdateItem(ctx context.Context, id, quantity int64) (*entity.OrderItem, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateItem", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	if quantity < 1 {
		return nil, errorbank.Validation("quantity must be at least 1", errorbank.WithDetail("quantity", quantity))
	}

	var item *entity.OrderItem
	err := s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		loaded, err := s.orders.GetItem(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrItemNotFound) {
				return errorbank.NotFound("order item not found")
			}
			return errorbank.Internal("failed to load order item", errorbank.WithCause(err))
		}

		order, err := s.orders.GetForUpdate(ctx, tx, loaded.OrderID)
		if err != nil {
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		if !order.Status.Editable() {
			return errorbank.NotEditable("order items can no longer be changed",
				errorbank.WithDetail("status", order.Status.Token()))
		}

		loaded.Quantity = quantity
		if err := s.orders.UpdateItem(ctx, tx, loaded, "quantity"); err != nil {
			return errorbank.Internal("failed to update order item", errorbank.WithCause(err))
		}
		item = loaded
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidateCache(ctx, item.OrderID)
	return item, nil
}

// DeleteItem removes a line item while its order is still editable.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.DeleteItem", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	var orderID int64
	err := s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		item, err := s.orders.GetItem(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrItemNotFound) {
				return errorbank.NotFound("order item not found")
			}
			return errorbank.Internal("failed to load order item", errorbank.WithCause(err))
		}

		order, err := s.orders.GetForUpdate(ctx, tx, item.OrderID)
		if err != nil {
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		if !order.Status.Editable() {
			return errorbank.NotEditable("order items can no longer be changed",
				errorbank.WithDetail("status", order.Status.Token()))
		}

		if err := s.orders.DeleteItem(ctx, tx, id); err != nil {
			return errorbank.Internal("failed to delete order item", errorbank.WithCause(err))
		}
		orderID = item.OrderID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.invalidateCache(ctx, orderID)
	return nil
}

// Update applies status and/or due-date changes to an order. Status values
// are wire tokens; only externally driven transitions are accepted here,
// internal moves belong to plan generation and reconciliation.
func (s *Service) Update(ctx context.Context, input UpdateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", input.ID)))
	defer span.End()

	var (
		order      *entity.Order
		fromStatus entity.OrderStatus
		changed    bool
	)
	err := s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		loaded, err := s.orders.GetForUpdate(ctx, tx, input.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errorbank.NotFound("order not found")
			}
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		order = loaded
		fromStatus = order.Status

		columns := make([]string, 0, 3)

		if input.DueDate != nil {
			if !fromStatus.Editable() {
				return errorbank.NotEditable("order due date can no longer be changed",
					errorbank.WithDetail("status", fromStatus.Token()))
			}
			if err := validateDueDate(*input.DueDate); err != nil {
				return err
			}
			order.DueDate = *input.DueDate
			columns = append(columns, "due_date")
		}

		if input.Address != nil {
			if !fromStatus.Editable() {
				return errorbank.NotEditable("order address can no longer be changed",
					errorbank.WithDetail("status", fromStatus.Token()))
			}
			order.AddressRef = *input.Address
			columns = append(columns, "address_ref")
		}

		if input.Status != nil {
			target, err := entity.ParseOrderStatus(*input.Status)
			if err != nil {
				return errorbank.Validation("unknown order status", errorbank.WithDetail("status", *input.Status))
			}
			if !fromStatus.CanExternalTransition(target) {
				return errorbank.InvalidTransition(
					fmt.Sprintf("order cannot move from %s to %s", fromStatus, target),
					errorbank.WithDetail("from", fromStatus.Token()),
					errorbank.WithDetail("to", target.Token()),
				)
			}
			order.Status = target
			columns = append(columns, "status")
			changed = true
		}

		if len(columns) == 0 {
			return errorbank.Validation("nothing to update")
		}
		if err := s.orders.Update(ctx, tx, order, columns...); err != nil {
			return errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.invalidateCache(ctx, order.ID)
	if changed {
		s.PublishStatusChanged(ctx, order, fromStatus)
	}
	return order, nil
}

// createDraft inserts a fresh draft order with a generated number.
func (s *Service) createDraft(ctx context.Context, tx bun.Tx, dueDate *time.Time) (*entity.Order, error) {
	now := time.Now().UTC()

	due := now.Add(defaultDueDateLead)
	if dueDate != nil {
		if err := validateDueDate(*dueDate); err != nil {
			return nil, err
		}
		due = *dueDate
	}

	number, err := s.generateNumber(ctx, tx, now)
	if err != nil {
		return nil, errorbank.Internal("failed to generate order number", errorbank.WithCause(err))
	}

	order := &entity.Order{
		Number:    number,
		Status:    entity.OrderDraft,
		DueDate:   due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.Create(ctx, tx, order); err != nil {
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	s.logger.Info("draft order created", zap.Int64("id", order.ID), zap.String("number", order.Number))
	return order, nil
}

// generateNumber produces the storefront's historical UST<date>-NNNNNN
// format: a date fragment plus a zero-padded per-fragment sequence. The
// sequence row is locked within the surrounding transaction, so two drafts
// created at once still get distinct numbers.
func (s *Service) generateNumber(ctx context.Context, idb bun.IDB, now time.Time) (string, error) {
	fragment := now.Format("060102")[1:3]
	prefix := orderNumberPrefix + fragment

	n, err := s.orders.NextNumber(ctx, idb, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}

func validateDueDate(due time.Time) error {
	if time.Until(due) < minDueDateLead {
		return errorbank.Validation("due date must be at least 15 days ahead",
			errorbank.WithDetail("due_date", due.Format(time.DateOnly)))
	}
	return nil
}

// PublishStatusChanged emits an order status change event; other services
// reuse it so reconciliation-driven moves reach the same topic.
func (s *Service) PublishStatusChanged(ctx context.Context, order *entity.Order, from entity.OrderStatus) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := StatusChangedEvent{
		EventID:    newEventID(),
		OrderID:    order.ID,
		Number:     order.Number,
		From:       from.Token(),
		To:         order.Status.Token(),
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order status changed", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order status changed", zap.Error(err))
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) invalidateCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}

// InvalidateCache drops the cached copy of an order; the transaction
// service calls it after reconciliation changes order state.
func (s *Service) InvalidateCache(ctx context.Context, id int64) {
	s.invalidateCache(ctx, id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

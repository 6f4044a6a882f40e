package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AFrenchWrench/ustat-orders/internal/database"
	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

var repoTracer = otel.Tracer("github.com/AFrenchWrench/ustat-orders/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrItemNotFound is returned when an order item is missing.
var ErrItemNotFound = errors.New("order item not found")

// Repository encapsulates read/write access for orders and their items.
// Mutations run inside a caller-supplied bun transaction so that item
// changes, status moves, and plan generation stay atomic per order.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// RunInTx executes fn inside a database transaction on the writer.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

// Create persists a new order.
func (r *Repository) Create(ctx context.Context, idb bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	_, err := idb.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order with its items and transactions using the read
// replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).
		Relation("Items").
		Relation("Transactions").
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetForUpdate locks the order row and loads its items and transactions
// within the supplied transaction. Locking the order row first serializes
// all mutations touching the same aggregate.
func (r *Repository) GetForUpdate(ctx context.Context, idb bun.IDB, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetForUpdate", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.lockForUpdate(idb.NewSelect().Model(order).Where("o.id = ?", id)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	if err := idb.NewSelect().Model(&order.Items).
		Where("order_id = ?", id).
		Order("id ASC").
		Scan(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := idb.NewSelect().Model(&order.Transactions).
		Where("order_id = ?", id).
		Order("id ASC").
		Scan(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// Update persists the given columns of an existing order.
func (r *Repository) Update(ctx context.Context, idb bun.IDB, order *entity.Order, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	order.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")

	_, err := idb.NewUpdate().Model(order).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// NextNumber allocates the next value of the per-prefix order number
// sequence. The sequence row is locked inside the caller's transaction, so
// concurrent draft creations cannot be handed the same number.
func (r *Repository) NextNumber(ctx context.Context, idb bun.IDB, prefix string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.NextNumber", trace.WithAttributes(attribute.String("order.prefix", prefix)))
	defer span.End()

	_, err := idb.NewInsert().Model(&entity.OrderSequence{Prefix: prefix}).
		On("CONFLICT (prefix) DO NOTHING").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sequence insert failed")
		return 0, err
	}

	seq := new(entity.OrderSequence)
	if err := r.lockForUpdate(idb.NewSelect().Model(seq).Where("prefix = ?", prefix)).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sequence select failed")
		return 0, err
	}

	seq.Value++
	if _, err := idb.NewUpdate().Model(seq).Column("value").WherePK().Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sequence update failed")
		return 0, err
	}
	return seq.Value, nil
}

// lockForUpdate adds a FOR UPDATE clause on dialects that speak it. SQLite
// does not, and serializes writers on its own.
func (r *Repository) lockForUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if r.writer.Dialect().Name() == dialect.SQLite {
		return q
	}
	return q.For("UPDATE")
}

// InsertItem adds a line item to an order.
func (r *Repository) InsertItem(ctx context.Context, idb bun.IDB, item *entity.OrderItem) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.InsertItem", trace.WithAttributes(attribute.Int64("order.id", item.OrderID)))
	defer span.End()

	_, err := idb.NewInsert().Model(item).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetItem fetches a single order item.
func (r *Repository) GetItem(ctx context.Context, idb bun.IDB, id int64) (*entity.OrderItem, error) {
	item := new(entity.OrderItem)
	err := idb.NewSelect().Model(item).Where("oi.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem persists the given columns of an existing order item.
func (r *Repository) UpdateItem(ctx context.Context, idb bun.IDB, item *entity.OrderItem, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateItem", trace.WithAttributes(attribute.Int64("item.id", item.ID)))
	defer span.End()

	item.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")

	_, err := idb.NewUpdate().Model(item).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// DeleteItem removes a line item.
func (r *Repository) DeleteItem(ctx context.Context, idb bun.IDB, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteItem", trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	res, err := idb.NewDelete().Model((*entity.OrderItem)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

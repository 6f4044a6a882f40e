package transaction

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AFrenchWrench/ustat-orders/internal/database"
	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

var repoTracer = otel.Tracer("github.com/AFrenchWrench/ustat-orders/repository/transaction")

// ErrNotFound is returned when a transaction is missing.
var ErrNotFound = errors.New("transaction not found")

// Repository encapsulates read/write access for payment transactions.
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

// InsertMany persists a batch of transactions as one statement; used by
// plan generation so a plan is written all-or-nothing.
func (r *Repository) InsertMany(ctx context.Context, idb bun.IDB, txs []*entity.Transaction) error {
	if len(txs) == 0 {
		return errors.New("empty transaction batch")
	}
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.InsertMany", trace.WithAttributes(
		attribute.Int64("order.id", txs[0].OrderID),
		attribute.Int("count", len(txs)),
	))
	defer span.End()

	_, err := idb.NewInsert().Model(&txs).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// Insert persists one transaction.
func (r *Repository) Insert(ctx context.Context, idb bun.IDB, tx *entity.Transaction) error {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.Insert", trace.WithAttributes(attribute.Int64("order.id", tx.OrderID)))
	defer span.End()

	_, err := idb.NewInsert().Model(tx).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a transaction using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Transaction, error) {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.GetByID", trace.WithAttributes(attribute.Int64("transaction.id", id)))
	defer span.End()

	tx := new(entity.Transaction)
	err := r.reader.NewSelect().Model(tx).Where("t.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return tx, nil
}

// Get fetches a transaction within the supplied transaction or connection.
func (r *Repository) Get(ctx context.Context, idb bun.IDB, id int64) (*entity.Transaction, error) {
	tx := new(entity.Transaction)
	err := idb.NewSelect().Model(tx).Where("t.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListByOrder returns all transactions belonging to an order.
func (r *Repository) ListByOrder(ctx context.Context, idb bun.IDB, orderID int64) ([]*entity.Transaction, error) {
	var txs []*entity.Transaction
	err := idb.NewSelect().Model(&txs).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// Update persists the given columns of an existing transaction.
func (r *Repository) Update(ctx context.Context, idb bun.IDB, tx *entity.Transaction, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.Update", trace.WithAttributes(attribute.Int64("transaction.id", tx.ID)))
	defer span.End()

	tx.UpdatedAt = time.Now().UTC()
	columns = append(columns, "updated_at")

	_, err := idb.NewUpdate().Model(tx).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

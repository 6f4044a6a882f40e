package transaction

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	"github.com/AFrenchWrench/ustat-orders/internal/config"
	"github.com/AFrenchWrench/ustat-orders/internal/database"
	"github.com/AFrenchWrench/ustat-orders/internal/entity"
	"github.com/AFrenchWrench/ustat-orders/internal/payplan"
	orderrepo "github.com/AFrenchWrench/ustat-orders/internal/repository/order"
	repo "github.com/AFrenchWrench/ustat-orders/internal/repository/transaction"
	variantrepo "github.com/AFrenchWrench/ustat-orders/internal/repository/variant"
	ordersvc "github.com/AFrenchWrench/ustat-orders/internal/service/order"
	"github.com/AFrenchWrench/ustat-orders/internal/storage"
	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
)

func newFixture(t *testing.T) (*Service, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	models := []any{
		(*entity.ItemVariant)(nil),
		(*entity.Order)(nil),
		(*entity.OrderItem)(nil),
		(*entity.Transaction)(nil),
		(*entity.OrderSequence)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	conns := &database.Connections{Writer: db, Reader: db}
	orders := orderrepo.NewRepository(conns)
	logger := zap.NewNop()

	cfg := config.Config{}
	cfg.Storage.ProofDir = t.TempDir()
	cfg.Storage.MaxUploadBytes = 1 << 20
	proofs, err := storage.NewProofStore(cfg, logger)
	require.NoError(t, err)

	orderService := ordersvc.NewService(ordersvc.Params{
		Orders:   orders,
		Variants: variantrepo.NewRepository(conns),
		Config:   config.Config{},
		Logger:   logger,
	})

	svc := NewService(Params{
		Orders:       orders,
		Transactions: repo.NewRepository(conns),
		OrderService: orderService,
		Proofs:       proofs,
		Logger:       logger,
	})
	return svc, db
}

// seedApprovedOrder inserts an approved order whose items sum to total.
func seedApprovedOrder(t *testing.T, db *bun.DB, number string, total int64) *entity.Order {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	order := &entity.Order{Number: number, Status: entity.OrderApproved, DueDate: now.AddDate(0, 1, 0), CreatedAt: now, UpdatedAt: now}
	_, err := db.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	item := &entity.OrderItem{OrderID: order.ID, VariantID: 1, Name: "Oak dining table", UnitPrice: total, Quantity: 1, CreatedAt: now}
	_, err = db.NewInsert().Model(item).Exec(ctx)
	require.NoError(t, err)

	order.Items = []*entity.OrderItem{item}
	return order
}

func loadOrder(t *testing.T, db *bun.DB, id int64) *entity.Order {
	t.Helper()

	order := new(entity.Order)
	err := db.NewSelect().Model(order).
		Relation("Items").
		Relation("Transactions").
		Where("o.id = ?", id).
		Scan(context.Background())
	require.NoError(t, err)
	return order
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()

	var appErr *errorbank.AppError
	require.True(t, errors.As(err, &appErr), "unexpected error: %v", err)
	assert.Equal(t, kind, appErr.Kind())
}

func TestGeneratePlanIsIdempotent(t *testing.T) {
	svc, db := newFixture(t)
	ctx := context.Background()
	order := seedApprovedOrder(t, db, "UST60-000001", 1_000_000)
	sel := payplan.Selection{UpfrontPercent: 40, CheckCount: 8}

	first, created, err := svc.GeneratePlan(ctx, order.ID, sel)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, first, 9)
	assert.Equal(t, entity.OrderAwaitingPayment, loadOrder(t, db, order.ID).Status)

	second, created, err := svc.GeneratePlan(ctx, order.ID, sel)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, second, 9)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Amount, second[i].Amount)
	}

	reloaded := loadOrder(t, db, order.ID)
	assert.Equal(t, entity.OrderAwaitingPayment, reloaded.Status)
	assert.Len(t, reloaded.Transactions, 9)
}

func TestGeneratePlanRetryAfterFullPayment(t *testing.T) {
	svc, db := newFixture(t)
	ctx := context.Background()
	order := seedApprovedOrder(t, db, "UST60-000002", 500_000)
	sel := payplan.Selection{UpfrontPercent: 100}

	plan, created, err := svc.GeneratePlan(ctx, order.ID, sel)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, plan, 1)

	_, err = svc.UpdateStatus(ctx, plan[0].ID, "d")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPaid, loadOrder(t, db, order.ID).Status)

	// A retry after the order moved on still returns the existing plan.
	again, created, err := svc.GeneratePlan(ctx, order.ID, sel)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, again, 1)
	assert.Equal(t, plan[0].ID, again[0].ID)
	assert.Equal(t, entity.OrderPaid, loadOrder(t, db, order.ID).Status)
}

func TestGeneratePlanRequiresApprovedOrder(t *testing.T) {
	svc, db := newFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	order := &entity.Order{Number: "UST60-000003", Status: entity.OrderDraft, DueDate: now.AddDate(0, 1, 0), CreatedAt: now}
	_, err := db.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	_, _, err = svc.GeneratePlan(ctx, order.ID, payplan.Selection{UpfrontPercent: 100})
	requireKind(t, err, errorbank.KindInvalidTransition)
}

func TestChequeRequiresProofBeforePaid(t *testing.T) {
	svc, db := newFixture(t)
	ctx := context.Background()
	order := seedApprovedOrder(t, db, "UST60-000004", 900_000)

	plan, _, err := svc.GeneratePlan(ctx, order.ID, payplan.Selection{UpfrontPercent: 30, CheckCount: 3})
	require.NoError(t, err)
	require.Len(t, plan, 4)

	upfront, cheque := plan[0], plan[1]
	require.False(t, upfront.IsCheck)
	require.True(t, cheque.IsCheck)

	// The upfront transaction needs no proof.
	paid, err := svc.UpdateStatus(ctx, upfront.ID, "d")
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionPaid, paid.Status)

	// The cheque does.
	_, err = svc.UpdateStatus(ctx, cheque.ID, "d")
	requireKind(t, err, errorbank.KindProofRequired)

	attached, err := svc.AttachProof(ctx, cheque.ID, "cheque.png", bytes.NewReader([]byte("scan")))
	require.NoError(t, err)
	assert.True(t, attached.HasProof())

	paid, err = svc.UpdateStatus(ctx, cheque.ID, "d")
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionPaid, paid.Status)

	// Still awaiting payment: two cheques remain pending.
	assert.Equal(t, entity.OrderAwaitingPayment, loadOrder(t, db, order.ID).Status)
}

func TestPaidTransactionIsTerminal(t *testing.T) {
	svc, db := newFixture(t)
	ctx := context.Background()
	order := seedApprovedOrder(t, db, "UST60-000005", 500_000)

	plan, _, err := svc.GeneratePlan(ctx, order.ID, payplan.Selection{UpfrontPercent: 100})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, plan[0].ID, "d")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, plan[0].ID, "c")
	requireKind(t, err, errorbank.KindInvalidTransition)

	_, err = svc.AttachProof(ctx, plan[0].ID, "late.png", bytes.NewReader([]byte("scan")))
	requireKind(t, err, errorbank.KindNotEditable)
}

func TestSolePaymentCancellationRevertsOrder(t *testing.T) {
	svc, db := newFixture(t)
	ctx := context.Background()
	order := seedApprovedOrder(t, db, "UST60-000006", 500_000)

	plan, _, err := svc.GeneratePlan(ctx, order.ID, payplan.Selection{UpfrontPercent: 100})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, plan[0].ID, "c")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderApproved, loadOrder(t, db, order.ID).Status)

	// With no live plan left, generation may run again.
	fresh, created, err := svc.GeneratePlan(ctx, order.ID, payplan.Selection{UpfrontPercent: 50, CheckCount: 2})
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, fresh, 3)
}

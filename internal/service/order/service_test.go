package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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
	repo "github.com/AFrenchWrench/ustat-orders/internal/repository/order"
	variantrepo "github.com/AFrenchWrench/ustat-orders/internal/repository/variant"
	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
)

func newTestDB(t *testing.T) *bun.DB {
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
	return db
}

func newTestService(t *testing.T) (*Service, *bun.DB) {
	t.Helper()

	db := newTestDB(t)
	conns := &database.Connections{Writer: db, Reader: db}
	svc := NewService(Params{
		Orders:   repo.NewRepository(conns),
		Variants: variantrepo.NewRepository(conns),
		Config:   config.Config{},
		Logger:   zap.NewNop(),
	})
	return svc, db
}

func seedVariant(t *testing.T, db *bun.DB, name string, price int64) *entity.ItemVariant {
	t.Helper()

	variant := &entity.ItemVariant{Type: "sofa", Name: name, Price: price, CreatedAt: time.Now().UTC()}
	_, err := db.NewInsert().Model(variant).Exec(context.Background())
	require.NoError(t, err)
	return variant
}

func seedOrder(t *testing.T, db *bun.DB, number string, status entity.OrderStatus, items ...*entity.OrderItem) *entity.Order {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	order := &entity.Order{Number: number, Status: status, DueDate: now.AddDate(0, 1, 0), CreatedAt: now, UpdatedAt: now}
	_, err := db.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	for _, item := range items {
		item.OrderID = order.ID
		item.CreatedAt = now
		_, err := db.NewInsert().Model(item).Exec(ctx)
		require.NoError(t, err)
	}
	order.Items = items
	return order
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()

	var appErr *errorbank.AppError
	require.True(t, errors.As(err, &appErr), "unexpected error: %v", err)
	assert.Equal(t, kind, appErr.Kind())
}

func TestCreateItemCreatesDraftAndMergesQuantity(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	variant := seedVariant(t, db, "Oak dining table", 250_000)

	order, item, err := svc.CreateItem(ctx, CreateItemInput{Variant: variant.ID, Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, entity.OrderDraft, order.Status)
	assert.True(t, strings.HasPrefix(order.Number, "UST"))
	assert.True(t, strings.HasSuffix(order.Number, "-000001"))
	assert.Equal(t, int64(250_000), item.UnitPrice)
	assert.GreaterOrEqual(t, time.Until(order.DueDate), 24*24*time.Hour)

	// Adding the same variant again merges into the existing line.
	sameOrder, merged, err := svc.CreateItem(ctx, CreateItemInput{OrderID: &order.ID, Variant: variant.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, order.ID, sameOrder.ID)
	assert.Equal(t, item.ID, merged.ID)
	assert.Equal(t, int64(5), merged.Quantity)

	loaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, int64(1_250_000), loaded.TotalPrice())
}

func TestDraftNumbersAreSequential(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	variant := seedVariant(t, db, "Walnut loveseat", 310_000)

	first, _, err := svc.CreateItem(ctx, CreateItemInput{Variant: variant.ID, Quantity: 1})
	require.NoError(t, err)
	second, _, err := svc.CreateItem(ctx, CreateItemInput{Variant: variant.ID, Quantity: 1})
	require.NoError(t, err)

	assert.NotEqual(t, first.Number, second.Number)
	assert.True(t, strings.HasSuffix(first.Number, "-000001"))
	assert.True(t, strings.HasSuffix(second.Number, "-000002"))
}

func TestItemEditingGuards(t *testing.T) {
	lockedStatuses := []entity.OrderStatus{
		entity.OrderApproved,
		entity.OrderRejected,
		entity.OrderCancelled,
		entity.OrderAwaitingPayment,
		entity.OrderPaid,
		entity.OrderAwaitingShipment,
		entity.OrderShipped,
		entity.OrderDelivered,
	}

	for _, status := range lockedStatuses {
		t.Run(status.String(), func(t *testing.T) {
			svc, db := newTestService(t)
			ctx := context.Background()
			variant := seedVariant(t, db, "King bed frame", 380_000)
			order := seedOrder(t, db, fmt.Sprintf("UST60-9%05d", status), status,
				&entity.OrderItem{VariantID: variant.ID, Name: variant.Name, UnitPrice: variant.Price, Quantity: 1},
			)
			item := order.Items[0]

			_, _, err := svc.CreateItem(ctx, CreateItemInput{OrderID: &order.ID, Variant: variant.ID, Quantity: 1})
			requireKind(t, err, errorbank.KindNotEditable)

			_, err = svc.UpdateItem(ctx, item.ID, 4)
			requireKind(t, err, errorbank.KindNotEditable)

			err = svc.DeleteItem(ctx, item.ID)
			requireKind(t, err, errorbank.KindNotEditable)

			due := time.Now().UTC().AddDate(0, 2, 0)
			_, err = svc.Update(ctx, UpdateInput{ID: order.ID, DueDate: &due})
			requireKind(t, err, errorbank.KindNotEditable)
		})
	}
}

func TestItemEditingAllowedWhilePendingApproval(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	variant := seedVariant(t, db, "Two-door wardrobe", 275_000)
	order := seedOrder(t, db, "UST60-000042", entity.OrderPendingApproval,
		&entity.OrderItem{VariantID: variant.ID, Name: variant.Name, UnitPrice: variant.Price, Quantity: 1},
	)

	updated, err := svc.UpdateItem(ctx, order.Items[0].ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Quantity)

	require.NoError(t, svc.DeleteItem(ctx, order.Items[0].ID))
}

func TestUpdateRejectsInternalTransitions(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	order := seedOrder(t, db, "UST60-000077", entity.OrderApproved)

	for _, token := range []string{"PP", "PD"} {
		status := token
		_, err := svc.Update(ctx, UpdateInput{ID: order.ID, Status: &status})
		requireKind(t, err, errorbank.KindInvalidTransition)
	}

	cancel := "C"
	updated, err := svc.Update(ctx, UpdateInput{ID: order.ID, Status: &cancel})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCancelled, updated.Status)
}

package variant

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/AFrenchWrench/ustat-orders/internal/database"
	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

// ErrNotFound is returned when a catalog variant is missing.
var ErrNotFound = errors.New("item variant not found")

// Repository resolves catalog variants. Catalog management is owned by
// another service; this engine only needs read access to capture a price
// when a line item is added.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a read-only variant repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByID fetches a variant by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.ItemVariant, error) {
	v := new(entity.ItemVariant)
	err := r.reader.NewSelect().Model(v).Where("v.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

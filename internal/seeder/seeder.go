package seeder

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/AFrenchWrench/ustat-orders/internal/database"
	"github.com/AFrenchWrench/ustat-orders/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Variants seeds the furniture catalog if it is missing. Prices are whole
// currency units; orders capture them per line at add time.
func (s *Seeder) Variants(ctx context.Context) error {
	samples := []entity.ItemVariant{
		{Type: "sofa", Name: "Rosewood three-seat sofa", Price: 420_000},
		{Type: "sofa", Name: "Walnut loveseat", Price: 310_000},
		{Type: "table", Name: "Oak dining table", Price: 250_000},
		{Type: "table", Name: "Glass coffee table", Price: 95_000},
		{Type: "chair", Name: "Upholstered dining chair", Price: 45_000},
		{Type: "bed", Name: "King bed frame", Price: 380_000},
		{Type: "wardrobe", Name: "Two-door wardrobe", Price: 275_000},
	}

	for _, sample := range samples {
		variant := sample
		_, err := s.db.NewInsert().Model(&variant).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded item variants", zap.Int("count", len(samples)))
	}
	return nil
}

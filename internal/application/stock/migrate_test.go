package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/reservas-api/internal/application/stock"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/infrastructure/memory"
	"github.com/jhoicas/reservas-api/pkg/logger"
	"github.com/jhoicas/reservas-api/pkg/metrics"
)

func newMigration(store *memory.StockRecordStore, workers int) *stock.MigrationUseCase {
	engine := stock.NewEngine(store, nil, 0, logger.Nop(), metrics.NewNop())
	return stock.NewMigrationUseCase(store, engine, workers, logger.Nop())
}

// Caso 1: la migración normaliza los documentos legacy y deja intactos los
// que ya tienen la forma completa.
func TestMigracion_NormalizaLegacy(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	store.Seed("legacy-1", entity.StockDoc{Quantity: 7})
	store.Seed("legacy-2", entity.StockDoc{Quantity: 0})

	available, reserved := 9, 2
	store.Seed("moderno", entity.StockDoc{
		Quantity:  9,
		Available: &available,
		Reserved:  &reserved,
		Reservations: map[string]entity.Reservation{
			"sesion-a": {Quantity: 2, ExpiresAt: farFuture()},
		},
	})

	visited, err := newMigration(store, 2).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, visited)

	for _, id := range []string{"legacy-1", "legacy-2", "moderno"} {
		doc, _, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, doc.Legacy(), "%s debe quedar normalizado", id)
	}

	doc, _, err := store.Get(ctx, "legacy-1")
	require.NoError(t, err)
	require.NotNil(t, doc.Available)
	assert.Equal(t, 7, *doc.Available)
	require.NotNil(t, doc.Reserved)
	assert.Equal(t, 0, *doc.Reserved)
	assert.NotNil(t, doc.Reservations)

	// el documento moderno no se reescribió
	assert.EqualValues(t, 1, store.Version("moderno"))
}

// Caso 2: la migración es idempotente; una segunda corrida no toca versiones.
func TestMigracion_Idempotente(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	store.Seed("p1", entity.StockDoc{Quantity: 3})
	store.Seed("p2", entity.StockDoc{Quantity: 5})

	_, err := newMigration(store, 2).Run(ctx)
	require.NoError(t, err)
	v1, v2 := store.Version("p1"), store.Version("p2")

	visited, err := newMigration(store, 2).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, visited)
	assert.Equal(t, v1, store.Version("p1"))
	assert.Equal(t, v2, store.Version("p2"))
}

// Caso 3: las reservas vencidas se podan durante la migración.
func TestMigracion_PodaVencidas(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	available, reserved := 5, 3
	store.Seed("p1", entity.StockDoc{
		Quantity:  5,
		Available: &available,
		Reserved:  &reserved,
		Reservations: map[string]entity.Reservation{
			"vieja": {Quantity: 3, ExpiresAt: pastTime()},
		},
	})

	_, err := newMigration(store, 1).Run(ctx)
	require.NoError(t, err)

	doc, _, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, doc.Reserved)
	assert.Equal(t, 0, *doc.Reserved)
	assert.Empty(t, doc.Reservations)
}

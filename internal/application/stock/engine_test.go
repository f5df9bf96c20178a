package stock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/reservas-api/internal/application/stock"
	"github.com/jhoicas/reservas-api/internal/domain"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
	"github.com/jhoicas/reservas-api/internal/infrastructure/memory"
	"github.com/jhoicas/reservas-api/pkg/logger"
	"github.com/jhoicas/reservas-api/pkg/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dobles de test
// ──────────────────────────────────────────────────────────────────────────────

// conflictingStore envuelve el almacén en memoria y fuerza n conflictos de
// CompareAndSwap antes de delegar (simula escritores concurrentes).
type conflictingStore struct {
	repository.StockRecordRepository
	conflictsLeft int
}

func (s *conflictingStore) CompareAndSwap(ctx context.Context, productID string, doc entity.StockDoc, expected repository.Version) (repository.Version, error) {
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return 0, domain.ErrConflict
	}
	return s.StockRecordRepository.CompareAndSwap(ctx, productID, doc, expected)
}

// flakyStore falla las primeras n lecturas con un error de almacenamiento.
type flakyStore struct {
	repository.StockRecordRepository
	failsLeft int
	gets      int
}

func (s *flakyStore) Get(ctx context.Context, productID string) (entity.StockDoc, repository.Version, error) {
	s.gets++
	if s.failsLeft > 0 {
		s.failsLeft--
		return entity.StockDoc{}, 0, domain.ErrStorageUnavailable
	}
	return s.StockRecordRepository.Get(ctx, productID)
}

// captureNotifier guarda los snapshots notificados tras cada commit.
type captureNotifier struct {
	snaps []entity.StockSnapshot
}

func (n *captureNotifier) StockChanged(snap entity.StockSnapshot) {
	n.snaps = append(n.snaps, snap)
}

func newEngine(records repository.StockRecordRepository, notifier stock.Notifier, retries int) *stock.Engine {
	return stock.NewEngine(records, notifier, retries, logger.Nop(), metrics.NewNop())
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests del motor transaccional
// ──────────────────────────────────────────────────────────────────────────────

// Caso 1: un registro inexistente se crea implícitamente en la primera
// escritura, partiendo del estado cero.
func TestEngine_CreacionImplicita(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	engine := newEngine(store, nil, 0)

	rec, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		return rec.SetAvailable(10)
	})
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Available)

	doc, ver, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ver)
	require.NotNil(t, doc.Available)
	assert.Equal(t, 10, *doc.Available)
}

// Caso 2: ante conflicto el motor relee y reintenta; la transformación ve
// estado fresco en cada intento y al final hay exactamente un commit.
func TestEngine_ReintentaConLecturaFresca(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStockRecordStore()
	inner.Seed("p1", entity.StockDoc{Quantity: 5})
	store := &conflictingStore{StockRecordRepository: inner, conflictsLeft: 2}
	engine := newEngine(store, nil, 4)

	attempts := 0
	rec, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		attempts++
		return rec.Reserve("A", 2, farFuture())
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "un intento por conflicto más el que confirma")
	assert.Equal(t, 2, rec.Reserved)

	_, ver, err := inner.Get(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, ver, "exactamente un commit")
}

// Caso 3: un rechazo de dominio no se reintenta ni se persiste.
func TestEngine_RechazoDeDominioSinReintento(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	store.Seed("p1", entity.StockDoc{Quantity: 1})
	engine := newEngine(store, nil, 4)

	attempts := 0
	_, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		attempts++
		return rec.Reserve("A", 5, farFuture())
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 1, attempts, "reintentar con la misma información no cambia el resultado")

	_, ver, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ver, "sin commit")
}

// Caso 4: agotado el presupuesto, el error sube como transitorio.
func TestEngine_PresupuestoAgotado(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStockRecordStore()
	inner.Seed("p1", entity.StockDoc{Quantity: 5})
	store := &conflictingStore{StockRecordRepository: inner, conflictsLeft: 100}
	engine := newEngine(store, nil, 3)

	_, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		return rec.Reserve("A", 1, farFuture())
	})
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// Caso 5: fallo de almacenamiento en la lectura sube como transitorio sin
// consumir el presupuesto de conflictos.
func TestEngine_AlmacenamientoCaido(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{StockRecordRepository: memory.NewStockRecordStore(), failsLeft: 1}
	engine := newEngine(store, nil, 4)

	_, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		return rec.SetAvailable(1)
	})
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, 1, store.gets)
}

// Caso 6: el notifier recibe el snapshot después del commit, con los valores
// confirmados.
func TestEngine_NotificaTrasCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	notifier := &captureNotifier{}
	engine := newEngine(store, notifier, 0)

	_, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		return rec.SetAvailable(7)
	})
	require.NoError(t, err)

	require.Len(t, notifier.snaps, 1)
	assert.Equal(t, "p1", notifier.snaps[0].ProductID)
	assert.Equal(t, 7, notifier.snaps[0].Available)
	assert.Equal(t, 7, notifier.snaps[0].Sellable)
	assert.EqualValues(t, 1, notifier.snaps[0].Version, "el snapshot lleva la versión confirmada")

	_, err = engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		return rec.SetAvailable(6)
	})
	require.NoError(t, err)
	require.Len(t, notifier.snaps, 2)
	assert.EqualValues(t, 2, notifier.snaps[1].Version)
}

// Caso 7: un documento legacy se normaliza al pasar por cualquier
// transacción (coacción en la frontera del motor).
func TestEngine_CoaccionaLegacyAlEscribir(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	store.Seed("p1", entity.StockDoc{Quantity: 7})
	engine := newEngine(store, nil, 0)

	rec, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		return rec.Reserve("A", 1, farFuture())
	})
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Available)

	doc, _, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, doc.Legacy(), "el documento persistido debe quedar normalizado")
}

// Caso 8: las reservas vencidas se eliminan en la próxima transacción que
// toca el producto y las unidades vuelven al vendible.
func TestEngine_ExpiracionPasiva(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockRecordStore()
	reserved := 5
	available := 5
	store.Seed("p1", entity.StockDoc{
		Quantity:  5,
		Available: &available,
		Reserved:  &reserved,
		Reservations: map[string]entity.Reservation{
			"vencida": {Quantity: 5, ExpiresAt: pastTime()},
		},
	})
	engine := newEngine(store, nil, 0)

	rec, err := engine.Atomic(ctx, "p1", func(rec *entity.StockRecord) error {
		return rec.Reserve("B", 5, farFuture())
	})
	require.NoError(t, err, "la reserva vencida debe tratarse como liberada")
	assert.Equal(t, 5, rec.Reserved)
	assert.NotContains(t, rec.Reservations, "vencida")
}

package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/reservas-api/internal/domain"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
)

func intPtr(n int) *int { return &n }

// Caso 1: documento legacy {quantity: 7} sin available → coacciona a
// {quantity: 7, available: 7, reserved: 0, reservations: {}}.
func TestCoerce_DocumentoLegacy(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 7})

	assert.Equal(t, 7, rec.Quantity)
	assert.Equal(t, 7, rec.Available)
	assert.Equal(t, 0, rec.Reserved)
	require.NotNil(t, rec.Reservations)
	assert.Empty(t, rec.Reservations)
}

// Caso 2: coaccionar dos veces da el mismo resultado que una (idempotencia).
func TestCoerce_Idempotente(t *testing.T) {
	doc := entity.StockDoc{Quantity: 7}

	once := entity.Coerce("p1", doc)
	twice := entity.Coerce("p1", once.Doc())

	assert.Equal(t, once.Quantity, twice.Quantity)
	assert.Equal(t, once.Available, twice.Available)
	assert.Equal(t, once.Reserved, twice.Reserved)
	assert.Equal(t, once.Reservations, twice.Reservations)
}

// Caso 3: un documento ya normalizado conserva sus campos; available manda
// sobre quantity y quantity queda como espejo.
func TestCoerce_DocumentoNormalizado(t *testing.T) {
	doc := entity.StockDoc{
		Quantity:  99, // desincronizado a propósito
		Available: intPtr(10),
		Reserved:  intPtr(2),
		Reservations: map[string]entity.Reservation{
			"X": {Quantity: 2, ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	rec := entity.Coerce("p1", doc)

	assert.Equal(t, 10, rec.Available)
	assert.Equal(t, 10, rec.Quantity, "quantity debe quedar como espejo de available")
	assert.Equal(t, 2, rec.Reserved)
	assert.Len(t, rec.Reservations, 1)
}

func TestStockDoc_Legacy(t *testing.T) {
	assert.True(t, entity.StockDoc{Quantity: 7}.Legacy())
	assert.False(t, entity.StockDoc{
		Available:    intPtr(7),
		Reserved:     intPtr(0),
		Reservations: map[string]entity.Reservation{},
	}.Legacy())
}

// Caso 4: reservar descuenta del vendible sin tocar available; confirmar
// descuenta de ambos y elimina la clave.
func TestStockRecord_ReservarYConfirmar(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 10})
	expires := time.Now().Add(time.Hour)

	require.NoError(t, rec.Reserve("X", 2, expires))
	assert.Equal(t, 10, rec.Available)
	assert.Equal(t, 2, rec.Reserved)
	assert.Equal(t, 8, rec.Sellable())

	require.NoError(t, rec.Confirm("X", 2))
	assert.Equal(t, 8, rec.Available)
	assert.Equal(t, 0, rec.Reserved)
	assert.Equal(t, 8, rec.Quantity, "quantity legacy debe seguir a available")
	assert.Empty(t, rec.Reservations)
}

// Caso 5: confirmar parcialmente deja el resto reservado bajo la misma clave.
func TestStockRecord_ConfirmarParcial(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 10})
	require.NoError(t, rec.Reserve("X", 5, time.Now().Add(time.Hour)))

	require.NoError(t, rec.Confirm("X", 3))
	assert.Equal(t, 7, rec.Available)
	assert.Equal(t, 2, rec.Reserved)
	assert.Equal(t, 2, rec.Reservations["X"].Quantity)
}

// Caso 6: confirmar más de lo reservado rechaza sin cambios.
func TestStockRecord_ConfirmarDeMas(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 10})
	require.NoError(t, rec.Reserve("X", 2, time.Now().Add(time.Hour)))

	err := rec.Confirm("X", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidReservation)
	assert.Equal(t, 10, rec.Available)
	assert.Equal(t, 2, rec.Reserved)
}

// Caso 7: liberar devuelve el registro a su estado previo; liberar de nuevo
// es no-op.
func TestStockRecord_Liberar(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 5})
	require.NoError(t, rec.Reserve("A", 3, time.Now().Add(time.Hour)))

	assert.True(t, rec.Release("A"))
	assert.Equal(t, 5, rec.Available)
	assert.Equal(t, 0, rec.Reserved)
	assert.Empty(t, rec.Reservations)

	assert.False(t, rec.Release("A"), "segunda liberación debe ser no-op")
}

// Caso 8: una clave con reserva activa no puede volver a reservar.
func TestStockRecord_ReservaDuplicadaPorClave(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 10})
	require.NoError(t, rec.Reserve("A", 2, time.Now().Add(time.Hour)))

	err := rec.Reserve("A", 1, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidReservation)
	assert.Equal(t, 2, rec.Reserved)
}

// Caso 9: sin vendible suficiente la reserva rechaza sin cambios.
func TestStockRecord_StockInsuficiente(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 5})
	require.NoError(t, rec.Reserve("A", 3, time.Now().Add(time.Hour)))

	err := rec.Reserve("B", 3, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 3, rec.Reserved)
}

// Caso 10: cantidades no positivas y claves vacías rechazan antes de mutar.
func TestStockRecord_EntradaInvalida(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 5})

	assert.ErrorIs(t, rec.Reserve("A", 0, time.Time{}), domain.ErrInvalidInput)
	assert.ErrorIs(t, rec.Reserve("A", -1, time.Time{}), domain.ErrInvalidInput)
	assert.ErrorIs(t, rec.Reserve("", 1, time.Time{}), domain.ErrInvalidInput)
	assert.ErrorIs(t, rec.Confirm("A", 0), domain.ErrInvalidInput)
	assert.ErrorIs(t, rec.SetAvailable(-1), domain.ErrInvalidInput)
}

// Caso 11: la poda elimina solo las reservas vencidas y descuenta reserved;
// available no cambia.
func TestStockRecord_PodaDeVencidas(t *testing.T) {
	now := time.Now()
	rec := entity.Coerce("p1", entity.StockDoc{
		Quantity:  10,
		Available: intPtr(10),
		Reserved:  intPtr(5),
		Reservations: map[string]entity.Reservation{
			"vieja": {Quantity: 3, ExpiresAt: now.Add(-time.Minute)},
			"viva":  {Quantity: 2, ExpiresAt: now.Add(time.Hour)},
		},
	})

	pruned := rec.PruneExpired(now)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 10, rec.Available)
	assert.Equal(t, 2, rec.Reserved)
	assert.NotContains(t, rec.Reservations, "vieja")
	assert.Contains(t, rec.Reservations, "viva")
}

// Caso 12: sobreescritura administrativa no toca las reservas vigentes.
func TestStockRecord_SetAvailableConservaReservas(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 10})
	require.NoError(t, rec.Reserve("A", 4, time.Now().Add(time.Hour)))

	require.NoError(t, rec.SetAvailable(2))
	assert.Equal(t, 2, rec.Available)
	assert.Equal(t, 2, rec.Quantity)
	assert.Equal(t, 4, rec.Reserved, "las reservas vigentes se conservan")
}

// Caso 13: si un override administrativo dejó available por debajo de lo
// reservado, confirmar rechaza: available nunca baja de cero.
func TestStockRecord_ConfirmarTrasOverrideBajo(t *testing.T) {
	rec := entity.Coerce("p1", entity.StockDoc{Quantity: 10})
	require.NoError(t, rec.Reserve("A", 4, time.Now().Add(time.Hour)))
	require.NoError(t, rec.SetAvailable(2))

	err := rec.Confirm("A", 4)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 2, rec.Available)
	assert.Equal(t, 2, rec.Quantity)
	assert.Equal(t, 4, rec.Reserved, "la reserva sigue viva; liberar es del caller")

	// confirmar dentro del available sí procede
	require.NoError(t, rec.Confirm("A", 2))
	assert.Equal(t, 0, rec.Available)
	assert.Equal(t, 2, rec.Reserved)
	assert.GreaterOrEqual(t, rec.Available, 0)
}

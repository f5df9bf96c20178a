package repository

import (
	"context"

	"github.com/jhoicas/reservas-api/internal/domain/entity"
)

// Version es la versión de concurrencia optimista de un documento.
// Cero significa "el documento no existe todavía" (ruta de creación).
type Version int64

// StockRecordRepository define el puerto del almacén de registros de stock:
// lecturas puntuales y compare-and-swap por versión. Toda mutación pasa por
// el motor transaccional; no hay otra ruta de escritura.
type StockRecordRepository interface {
	// Get devuelve el documento crudo y su versión. domain.ErrNotFound si no
	// existe. No bloquea a otros lectores ni tiene efectos secundarios.
	Get(ctx context.Context, productID string) (entity.StockDoc, Version, error)

	// CompareAndSwap persiste doc solo si la versión actual coincide con
	// expected (expected == 0 inserta). domain.ErrConflict si otro escritor
	// ganó la carrera; devuelve la versión nueva al confirmar.
	CompareAndSwap(ctx context.Context, productID string, doc entity.StockDoc, expected Version) (Version, error)

	// EachID recorre los IDs de producto con registro (migración batch).
	EachID(ctx context.Context, fn func(productID string) error) error
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/reservas-api/internal/domain"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
)

var _ repository.StockRecordRepository = (*StockRecordRepo)(nil)

// StockRecordRepo almacén de documentos de stock sobre PostgreSQL: un JSONB
// por producto con columna version para el compare-and-swap. La linealización
// por producto la da la fila; no se usan locks (SELECT FOR UPDATE).
type StockRecordRepo struct {
	q Querier
}

// NewStockRecordRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockRecordRepository(q Querier) *StockRecordRepo {
	return &StockRecordRepo{q: q}
}

// EnsureSchema crea la tabla si no existe (idempotente).
func (r *StockRecordRepo) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS stock_records (
			product_id TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			version    BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := r.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("crear tabla stock_records: %w", err)
	}
	return nil
}

// Get lee el documento y su versión. Lectura puntual, sin bloqueo.
func (r *StockRecordRepo) Get(ctx context.Context, productID string) (entity.StockDoc, repository.Version, error) {
	var raw []byte
	var version int64
	err := r.q.QueryRow(ctx,
		`SELECT doc, version FROM stock_records WHERE product_id = $1`,
		productID,
	).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.StockDoc{}, 0, domain.ErrNotFound
		}
		return entity.StockDoc{}, 0, fmt.Errorf("get stock record: %w", errors.Join(domain.ErrStorageUnavailable, err))
	}
	var doc entity.StockDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entity.StockDoc{}, 0, fmt.Errorf("decodificar stock record: %w", err)
	}
	return doc, repository.Version(version), nil
}

// CompareAndSwap persiste el documento solo si la versión no cambió desde la
// lectura. expected == 0 inserta; si otro escritor creó la fila primero, o la
// actualizó en medio, devuelve domain.ErrConflict para que el motor reintente.
func (r *StockRecordRepo) CompareAndSwap(ctx context.Context, productID string, doc entity.StockDoc, expected repository.Version) (repository.Version, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("codificar stock record: %w", err)
	}

	if expected == 0 {
		cmd, err := r.q.Exec(ctx,
			`INSERT INTO stock_records (product_id, doc, version, updated_at)
			 VALUES ($1, $2, 1, now())
			 ON CONFLICT (product_id) DO NOTHING`,
			productID, raw,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, domain.ErrConflict
			}
			return 0, fmt.Errorf("insert stock record: %w", errors.Join(domain.ErrStorageUnavailable, err))
		}
		if cmd.RowsAffected() == 0 {
			return 0, domain.ErrConflict
		}
		return 1, nil
	}

	cmd, err := r.q.Exec(ctx,
		`UPDATE stock_records
		 SET doc = $2, version = version + 1, updated_at = now()
		 WHERE product_id = $1 AND version = $3`,
		productID, raw, int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("update stock record: %w", errors.Join(domain.ErrStorageUnavailable, err))
	}
	if cmd.RowsAffected() == 0 {
		return 0, domain.ErrConflict
	}
	return expected + 1, nil
}

// EachID recorre los IDs de producto con registro (migración batch).
func (r *StockRecordRepo) EachID(ctx context.Context, fn func(productID string) error) error {
	rows, err := r.q.Query(ctx, `SELECT product_id FROM stock_records ORDER BY product_id`)
	if err != nil {
		return fmt.Errorf("listar stock records: %w", errors.Join(domain.ErrStorageUnavailable, err))
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan product_id: %w", err)
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return rows.Err()
}

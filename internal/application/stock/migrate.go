package stock

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
	"github.com/jhoicas/reservas-api/pkg/logger"
)

// MigrationUseCase normaliza los documentos legacy (solo quantity) al esquema
// available/reserved/reservations. Corre en batch pero la coacción también se
// aplica en cada transacción, así que es seguro ejecutarla con tráfico vivo y
// repetirla: los registros ya normalizados no se reescriben.
type MigrationUseCase struct {
	records repository.StockRecordRepository
	engine  Runner
	workers int
	log     *logger.Logger
}

// NewMigrationUseCase construye la migración. workers <= 0 usa 4.
func NewMigrationUseCase(records repository.StockRecordRepository, engine Runner, workers int, log *logger.Logger) *MigrationUseCase {
	if workers <= 0 {
		workers = 4
	}
	return &MigrationUseCase{records: records, engine: engine, workers: workers, log: log}
}

// Run recorre todos los registros y persiste la forma normalizada de los que
// lo necesiten. Devuelve cuántos registros se visitaron.
func (m *MigrationUseCase) Run(ctx context.Context) (int, error) {
	var ids []string
	err := m.records.EachID(ctx, func(productID string) error {
		ids = append(ids, productID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("listar registros de stock: %w", err)
	}

	var visited atomic.Int64
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(m.workers)
	for _, productID := range ids {
		productID := productID
		group.Go(func() error {
			// errSkipCommit: el motor solo persiste si el doc era legacy
			// o había reservas vencidas que podar.
			_, err := m.engine.Atomic(gctx, productID, func(rec *entity.StockRecord) error {
				return errSkipCommit
			})
			if err != nil {
				return fmt.Errorf("migrar %s: %w", productID, err)
			}
			visited.Add(1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return int(visited.Load()), err
	}

	m.log.Info().Int("records", int(visited.Load())).Msg("migración de esquema de stock completada")
	return int(visited.Load()), nil
}

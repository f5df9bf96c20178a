package main

import (
	"context"
	"time"

	"github.com/jhoicas/reservas-api/internal/application/stock"
	"github.com/jhoicas/reservas-api/internal/infrastructure/postgres"
	"github.com/jhoicas/reservas-api/pkg/config"
	"github.com/jhoicas/reservas-api/pkg/logger"
	"github.com/jhoicas/reservas-api/pkg/metrics"
)

// Migración batch del esquema legacy (solo quantity) al esquema
// available/reserved/reservations. Idempotente y segura con tráfico vivo:
// las transacciones ya coaccionan documentos legacy al leerlos.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "info"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	records := postgres.NewStockRecordRepository(pool)
	if err := records.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("esquema de stock_records")
	}

	engine := stock.NewEngine(records, nil, cfg.Stock.RetryBudget, log, metrics.NewNop())
	migration := stock.NewMigrationUseCase(records, engine, cfg.Stock.MigrationWorkers, log)

	visited, err := migration.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Int("visited", visited).Msg("migración fallida")
	}
	log.Info().Int("visited", visited).Msg("migración terminada")
}

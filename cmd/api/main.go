package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/reservas-api/internal/application/stock"
	"github.com/jhoicas/reservas-api/internal/application/stockview"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
	"github.com/jhoicas/reservas-api/internal/infrastructure/memory"
	"github.com/jhoicas/reservas-api/internal/infrastructure/postgres"
	"github.com/jhoicas/reservas-api/internal/infrastructure/rabbit"
	httpRouter "github.com/jhoicas/reservas-api/internal/interfaces/http"
	"github.com/jhoicas/reservas-api/pkg/config"
	"github.com/jhoicas/reservas-api/pkg/logger"
	"github.com/jhoicas/reservas-api/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()

	var records repository.StockRecordRepository
	var catalog repository.ProductRepository
	if cfg.DB.Driver == "memory" {
		records = memory.NewStockRecordStore()
		catalog = memory.NewProductStore()
	} else {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		stockRepo := postgres.NewStockRecordRepository(pool)
		if err := stockRepo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("esquema de stock_records")
		}
		records = stockRepo
		catalog = postgres.NewProductRepository(pool)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// La caché implementa Notifier; el motor le entrega cada commit.
	// El motor del servicio no necesita records para leer: el servicio lee
	// directo para snapshots y el motor relee dentro de cada transacción.
	engine := stock.NewEngine(records, nil, cfg.Stock.RetryBudget, log, m)
	svc := stock.NewReservationService(engine, records, catalog, cfg.Stock.ReservationTTL, log, m)
	view := stockview.New(svc, stockview.Config{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL}, log, m)

	notifier := stock.FanoutNotifier(view)
	if cfg.Rabbit.Enabled() {
		bus, err := rabbit.New(cfg.Rabbit.URL, cfg.Rabbit.Exchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a RabbitMQ")
		}
		defer bus.Close()
		if err := bus.Consume(ctx, view.StockChanged); err != nil {
			log.Fatal().Err(err).Msg("consumidor RabbitMQ")
		}
		notifier = stock.FanoutNotifier(view, bus)
		log.Info().Str("exchange", cfg.Rabbit.Exchange).Msg("puente de eventos RabbitMQ activo")
	}
	engine.SetNotifier(notifier)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Reservas API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Stock:     httpRouter.NewStockHandler(svc, view),
		WS:        httpRouter.NewWSHandler(view, log),
		JWTSecret: cfg.JWT.Secret,
		Registry:  registry,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

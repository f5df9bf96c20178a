package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Stock     *StockHandler
	WS        *WSHandler
	JWTSecret string
	Registry  *prometheus.Registry
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Catálogo (solo lectura)
	api.Get("/products", deps.Stock.ListProducts)

	// Stock (público: lo consume la UI de la tienda)
	stocks := api.Group("/stock")
	stocks.Get("/:product_id", deps.Stock.GetStock)
	stocks.Post("/:product_id/reserve", deps.Stock.Reserve)
	stocks.Post("/:product_id/confirm", deps.Stock.Confirm)
	stocks.Post("/:product_id/release", deps.Stock.Release)

	// Canal de suscripción (websocket)
	stocks.Get("/:product_id/subscribe", UpgradeRequired, websocket.New(deps.WS.Subscribe))

	// Ruta administrativa (requiere Bearer Token con rol admin)
	stocks.Put("/:product_id",
		AuthMiddleware(deps.JWTSecret),
		RequireRole("admin"),
		deps.Stock.UpdateStock,
	)

	// Métricas Prometheus vía el adaptor net/http de Fiber
	if deps.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}),
		))
	}
}

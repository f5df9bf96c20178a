package http

import (
	"context"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/reservas-api/internal/application/stockview"
	"github.com/jhoicas/reservas-api/internal/domain"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/pkg/logger"
)

// WSHandler expone el canal de suscripción: un snapshot al conectar y uno por
// cada commit del producto, en orden de commit.
type WSHandler struct {
	view *stockview.Cache
	log  *logger.Logger
}

// NewWSHandler construye el handler de websockets.
func NewWSHandler(view *stockview.Cache, log *logger.Logger) *WSHandler {
	return &WSHandler{view: view, log: log}
}

// UpgradeRequired deja pasar solo peticiones de upgrade a websocket.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Subscribe maneja GET /api/stock/:product_id/subscribe (websocket).
// La goroutine de entrega del suscriptor es la única que escribe en la
// conexión; este handler solo lee para detectar el cierre del cliente.
func (h *WSHandler) Subscribe(c *websocket.Conn) {
	productID := c.Params("product_id")

	cancel, err := h.view.Subscribe(context.Background(), productID, func(snap entity.StockSnapshot) {
		if err := c.WriteJSON(snap); err != nil {
			h.log.Debug().Err(err).Str("product_id", productID).Msg("ws: escritura fallida")
		}
	})
	if err != nil {
		code, message := subscribeErrorBody(err)
		_ = c.WriteJSON(map[string]string{"code": code, "message": message})
		_ = c.Close()
		return
	}
	defer cancel()

	// bloquea hasta que el cliente cierre o falle la conexión
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// subscribeErrorBody mapea el error de suscripción al mensaje de cierre.
// Mismo criterio que respondError: un fallo transitorio invita al retry, no
// se hace pasar por producto inexistente.
func subscribeErrorBody(err error) (code, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "VALIDATION", "datos inválidos"
	case errors.Is(err, domain.ErrTransient):
		return "TRY_AGAIN", "fallo transitorio, intente de nuevo"
	default:
		return "NOT_FOUND", "producto no encontrado"
	}
}

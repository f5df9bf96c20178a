package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/reservas-api/internal/application/dto"
	"github.com/jhoicas/reservas-api/internal/application/stock"
	"github.com/jhoicas/reservas-api/internal/application/stockview"
	"github.com/jhoicas/reservas-api/internal/domain"
)

// StockHandler maneja las peticiones HTTP de stock y reservas.
type StockHandler struct {
	svc  *stock.ReservationService
	view *stockview.Cache
}

// NewStockHandler construye el handler.
func NewStockHandler(svc *stock.ReservationService, view *stockview.Cache) *StockHandler {
	return &StockHandler{svc: svc, view: view}
}

// GetStock godoc
// @Summary      Consultar stock de un producto
// @Tags         stock
// @Produce      json
// @Param        product_id  path  string  true  "ID del producto"
// @Success      200  {object}  dto.StockSnapshotResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id} [get]
func (h *StockHandler) GetStock(c *fiber.Ctx) error {
	snap, err := h.view.Get(c.Context(), c.Params("product_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.StockSnapshotResponse{
		ProductID: snap.ProductID,
		Available: snap.Available,
		Reserved:  snap.Reserved,
		Sellable:  snap.Sellable,
		UpdatedAt: snap.UpdatedAt,
	})
}

// ListProducts godoc
// @Summary      Listar el catálogo de productos
// @Tags         products
// @Produce      json
// @Param        limit   query  int  false  "máximo de resultados (default 50)"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200  {array}  dto.ProductResponse
// @Router       /api/products [get]
func (h *StockHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.svc.ListProducts(c.Context(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, dto.ProductResponse{ID: p.ID, SKU: p.SKU, Name: p.Name, Price: p.Price})
	}
	return c.JSON(out)
}

// Reserve godoc
// @Summary      Reservar unidades durante el checkout
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        product_id  path  string              true  "ID del producto"
// @Param        body        body  dto.ReserveRequest  true  "quantity, session_key"
// @Success      200  {object}  dto.OKResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id}/reserve [post]
func (h *StockHandler) Reserve(c *fiber.Ctx) error {
	var in dto.ReserveRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.svc.Reserve(c.Context(), c.Params("product_id"), in.Quantity, in.SessionKey); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// Confirm godoc
// @Summary      Confirmar una compra reservada
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        product_id  path  string              true  "ID del producto"
// @Param        body        body  dto.ConfirmRequest  true  "quantity, session_key"
// @Success      200  {object}  dto.OKResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id}/confirm [post]
func (h *StockHandler) Confirm(c *fiber.Ctx) error {
	var in dto.ConfirmRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.svc.Confirm(c.Context(), c.Params("product_id"), in.Quantity, in.SessionKey); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// Release godoc
// @Summary      Liberar una reserva (idempotente)
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        product_id  path  string              true  "ID del producto"
// @Param        body        body  dto.ReleaseRequest  true  "session_key"
// @Success      200  {object}  dto.OKResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id}/release [post]
func (h *StockHandler) Release(c *fiber.Ctx) error {
	var in dto.ReleaseRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.svc.Release(c.Context(), c.Params("product_id"), in.SessionKey); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// UpdateStock godoc
// @Summary      Sobreescribir el available de un producto (admin)
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        product_id  path  string                  true  "ID del producto"
// @Param        body        body  dto.UpdateStockRequest  true  "available"
// @Success      200  {object}  dto.OKResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{product_id} [put]
func (h *StockHandler) UpdateStock(c *fiber.Ctx) error {
	var in dto.UpdateStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.svc.UpdateAvailable(c.Context(), c.Params("product_id"), in.Available); err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// respondError mapea errores de dominio a HTTP. "sin stock" (accionable) y
// "reintente" (transitorio) llevan códigos distintos: la UI debe poder
// mostrar alternativas en el primero y un retry en el segundo.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente"})
	case errors.Is(err, domain.ErrInvalidReservation):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_RESERVATION", Message: "reserva inválida o inexistente"})
	case errors.Is(err, domain.ErrTransient):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "TRY_AGAIN", Message: "fallo transitorio, intente de nuevo"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

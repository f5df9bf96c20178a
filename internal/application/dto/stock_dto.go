package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReserveRequest body para POST /api/stock/:product_id/reserve.
// SessionKey identifica al comprador (sesión o transacción); una reserva
// activa por clave.
type ReserveRequest struct {
	Quantity   int    `json:"quantity"`
	SessionKey string `json:"session_key"`
}

// ConfirmRequest body para POST /api/stock/:product_id/confirm.
type ConfirmRequest struct {
	Quantity   int    `json:"quantity"`
	SessionKey string `json:"session_key"`
}

// ReleaseRequest body para POST /api/stock/:product_id/release.
type ReleaseRequest struct {
	SessionKey string `json:"session_key"`
}

// UpdateStockRequest body para PUT /api/stock/:product_id (admin).
type UpdateStockRequest struct {
	Available int `json:"available"`
}

// StockSnapshotResponse vista de stock para la UI.
type StockSnapshotResponse struct {
	ProductID string    `json:"product_id"`
	Available int       `json:"available"`
	Reserved  int       `json:"reserved"`
	Sellable  int       `json:"sellable"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductResponse elemento de GET /api/products.
type ProductResponse struct {
	ID    string          `json:"id"`
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

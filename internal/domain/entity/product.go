package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product es la vista de solo lectura del catálogo (colaborador externo).
// Se usa para distinguir "producto inexistente" de "producto sin stock"
// y para arrancar registros de stock en cero.
type Product struct {
	ID        string
	SKU       string
	Name      string
	Price     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

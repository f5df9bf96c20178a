package repository

import (
	"context"

	"github.com/jhoicas/reservas-api/internal/domain/entity"
)

// ProductRepository define el puerto de solo lectura hacia el catálogo.
type ProductRepository interface {
	// GetByID devuelve nil, nil si el producto no existe.
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Product, error)
}

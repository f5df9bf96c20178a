package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductStore)(nil)

// ProductStore catálogo en memoria (desarrollo y tests). El catálogo real es
// un colaborador externo; este adaptador imita su superficie de solo lectura.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]entity.Product
}

// NewProductStore construye el catálogo con los productos dados.
func NewProductStore(products ...entity.Product) *ProductStore {
	s := &ProductStore{products: make(map[string]entity.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// GetByID devuelve nil, nil si el producto no existe.
func (s *ProductStore) GetByID(_ context.Context, id string) (*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// List lista productos por ID con paginación.
func (s *ProductStore) List(_ context.Context, limit, offset int) ([]*entity.Product, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}
	var list []*entity.Product
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids[offset:end] {
		p := s.products[id]
		list = append(list, &p)
	}
	return list, nil
}

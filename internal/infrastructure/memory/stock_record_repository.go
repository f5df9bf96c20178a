package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/reservas-api/internal/domain"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
)

var _ repository.StockRecordRepository = (*StockRecordStore)(nil)

// StockRecordStore almacén en memoria con versiones, para desarrollo y tests.
// Mismo contrato de compare-and-swap que el adaptador PostgreSQL.
type StockRecordStore struct {
	mu   sync.RWMutex
	docs map[string]versionedDoc
}

type versionedDoc struct {
	doc     entity.StockDoc
	version repository.Version
}

// NewStockRecordStore construye el almacén vacío.
func NewStockRecordStore() *StockRecordStore {
	return &StockRecordStore{docs: map[string]versionedDoc{}}
}

// Seed carga un documento tal cual (útil para sembrar docs legacy en tests).
func (s *StockRecordStore) Seed(productID string, doc entity.StockDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[productID] = versionedDoc{doc: copyDoc(doc), version: 1}
}

// Get devuelve una copia del documento y su versión.
func (s *StockRecordStore) Get(_ context.Context, productID string) (entity.StockDoc, repository.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.docs[productID]
	if !ok {
		return entity.StockDoc{}, 0, domain.ErrNotFound
	}
	return copyDoc(cur.doc), cur.version, nil
}

// CompareAndSwap persiste doc solo si la versión coincide (0 = insertar).
func (s *StockRecordStore) CompareAndSwap(_ context.Context, productID string, doc entity.StockDoc, expected repository.Version) (repository.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[productID]
	if expected == 0 {
		if ok {
			return 0, domain.ErrConflict
		}
		s.docs[productID] = versionedDoc{doc: copyDoc(doc), version: 1}
		return 1, nil
	}
	if !ok || cur.version != expected {
		return 0, domain.ErrConflict
	}
	next := expected + 1
	s.docs[productID] = versionedDoc{doc: copyDoc(doc), version: next}
	return next, nil
}

// EachID recorre los IDs en orden estable.
func (s *StockRecordStore) EachID(_ context.Context, fn func(productID string) error) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// Version devuelve la versión actual (0 si no existe). Solo para tests.
func (s *StockRecordStore) Version(productID string) repository.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[productID].version
}

// copyDoc copia profunda: los punteros y el mapa no se comparten con el caller.
func copyDoc(doc entity.StockDoc) entity.StockDoc {
	out := doc
	if doc.Available != nil {
		v := *doc.Available
		out.Available = &v
	}
	if doc.Reserved != nil {
		v := *doc.Reserved
		out.Reserved = &v
	}
	if doc.Reservations != nil {
		out.Reservations = make(map[string]entity.Reservation, len(doc.Reservations))
		for key, res := range doc.Reservations {
			out.Reservations[key] = res
		}
	}
	return out
}

package entity

import (
	"time"

	"github.com/jhoicas/reservas-api/internal/domain"
)

// Reservation es un apartado temporal de unidades, con expiración.
// La clave (session o transaction ID) vive en el mapa del registro.
type Reservation struct {
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired indica si la reserva ya venció. Una reserva sin ExpiresAt no vence.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// StockDoc es el documento tal como se persiste. Los documentos legacy solo
// traen quantity; los punteros nil distinguen "campo ausente" de cero.
type StockDoc struct {
	Quantity     int                    `json:"quantity"`
	Available    *int                   `json:"available,omitempty"`
	Reserved     *int                   `json:"reserved,omitempty"`
	Reservations map[string]Reservation `json:"reservations,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Legacy indica si al documento le falta alguno de los campos nuevos.
func (d StockDoc) Legacy() bool {
	return d.Available == nil || d.Reserved == nil || d.Reservations == nil
}

// StockRecord es el registro de stock normalizado de un producto.
// Invariantes: Available >= 0, Reserved >= 0, Reserved == suma de las
// reservas activas, Quantity espejo de Available (lectores legacy).
type StockRecord struct {
	ProductID    string
	Quantity     int
	Available    int
	Reserved     int
	Reservations map[string]Reservation
	UpdatedAt    time.Time
}

// Coerce normaliza un documento al esquema available/reserved/reservations.
// Si available falta toma quantity; reserved ausente es 0; reservations
// ausente es mapa vacío. Idempotente: coaccionar dos veces da lo mismo.
func Coerce(productID string, doc StockDoc) StockRecord {
	rec := StockRecord{
		ProductID: productID,
		Quantity:  doc.Quantity,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.Available != nil {
		rec.Available = *doc.Available
	} else {
		rec.Available = doc.Quantity
	}
	if doc.Reserved != nil {
		rec.Reserved = *doc.Reserved
	}
	rec.Reservations = make(map[string]Reservation, len(doc.Reservations))
	for key, res := range doc.Reservations {
		rec.Reservations[key] = res
	}
	// quantity queda como espejo de available tras cualquier coacción
	rec.Quantity = rec.Available
	return rec
}

// Doc devuelve el documento persistible con el esquema completo.
func (s StockRecord) Doc() StockDoc {
	available := s.Available
	reserved := s.Reserved
	reservations := s.Reservations
	if reservations == nil {
		reservations = map[string]Reservation{}
	}
	return StockDoc{
		Quantity:     s.Available, // espejo legacy
		Available:    &available,
		Reserved:     &reserved,
		Reservations: reservations,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Sellable es el stock realmente vendible: available - reserved.
func (s StockRecord) Sellable() int {
	return s.Available - s.Reserved
}

// PruneExpired elimina las reservas vencidas y descuenta su cantidad de
// Reserved. Devuelve cuántas se eliminaron. El available no se toca: esas
// unidades nunca salieron del total, solo estaban apartadas.
func (s *StockRecord) PruneExpired(now time.Time) int {
	pruned := 0
	for key, res := range s.Reservations {
		if res.Expired(now) {
			s.Reserved -= res.Quantity
			delete(s.Reservations, key)
			pruned++
		}
	}
	if s.Reserved < 0 {
		s.Reserved = 0
	}
	return pruned
}

// Reserve aparta quantity unidades bajo key. Rechaza cantidades no positivas,
// claves vacías, claves con reserva activa (una reserva por clave) y falta de
// stock vendible.
func (s *StockRecord) Reserve(key string, quantity int, expiresAt time.Time) error {
	if quantity <= 0 || key == "" {
		return domain.ErrInvalidInput
	}
	if _, exists := s.Reservations[key]; exists {
		return domain.ErrInvalidReservation
	}
	if s.Sellable() < quantity {
		return domain.ErrInsufficientStock
	}
	if s.Reservations == nil {
		s.Reservations = map[string]Reservation{}
	}
	s.Reservations[key] = Reservation{Quantity: quantity, ExpiresAt: expiresAt}
	s.Reserved += quantity
	return nil
}

// Confirm consume quantity unidades de la reserva bajo key: descuenta de
// Available y de Reserved. Si consume la reserva completa elimina la clave;
// pedir más de lo reservado rechaza sin cambios. Si un override
// administrativo dejó el available por debajo de lo reservado, confirmar
// también rechaza: available nunca baja de cero.
func (s *StockRecord) Confirm(key string, quantity int) error {
	if quantity <= 0 || key == "" {
		return domain.ErrInvalidInput
	}
	res, exists := s.Reservations[key]
	if !exists || res.Quantity < quantity {
		return domain.ErrInvalidReservation
	}
	if quantity > s.Available {
		return domain.ErrInsufficientStock
	}
	if res.Quantity == quantity {
		delete(s.Reservations, key)
	} else {
		res.Quantity -= quantity
		s.Reservations[key] = res
	}
	s.Available -= quantity
	s.Reserved -= quantity
	s.Quantity = s.Available
	return nil
}

// Release libera la reserva bajo key. Devuelve false si no existía
// (liberar dos veces es no-op, no error).
func (s *StockRecord) Release(key string) bool {
	res, exists := s.Reservations[key]
	if !exists {
		return false
	}
	delete(s.Reservations, key)
	s.Reserved -= res.Quantity
	if s.Reserved < 0 {
		s.Reserved = 0
	}
	return true
}

// SetAvailable sobreescribe el available (ruta administrativa). No toca las
// reservas vigentes: decidir si se honran contra el nuevo total es del admin.
func (s *StockRecord) SetAvailable(available int) error {
	if available < 0 {
		return domain.ErrInvalidInput
	}
	s.Available = available
	s.Quantity = available
	return nil
}

// StockSnapshot es la vista de solo lectura que consume la capa de UI.
// Version es la versión del almacén al momento del commit o lectura; cero
// cuando el producto aún no tiene registro. La capa de suscripción la usa
// para descartar snapshots que llegan fuera del orden de commit.
type StockSnapshot struct {
	ProductID string    `json:"product_id"`
	Available int       `json:"available"`
	Reserved  int       `json:"reserved"`
	Sellable  int       `json:"sellable"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot proyecta el registro a la vista de UI.
func (s StockRecord) Snapshot() StockSnapshot {
	return StockSnapshot{
		ProductID: s.ProductID,
		Available: s.Available,
		Reserved:  s.Reserved,
		Sellable:  s.Sellable(),
		UpdatedAt: s.UpdatedAt,
	}
}

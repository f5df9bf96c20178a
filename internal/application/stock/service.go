package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/reservas-api/internal/domain"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
	"github.com/jhoicas/reservas-api/pkg/logger"
	"github.com/jhoicas/reservas-api/pkg/metrics"
)

// ReservationService implementa el protocolo reservar/confirmar/liberar sobre
// el motor transaccional. Ninguna operación hace "leer y luego escribir" por
// fuera de Atomic; la decisión de compra siempre se toma sobre estado fresco
// al momento del commit, no sobre la caché.
type ReservationService struct {
	engine  Runner
	records repository.StockRecordRepository
	catalog repository.ProductRepository
	ttl     time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReservationService construye el servicio. ttl es la vigencia de una
// reserva sin confirmar; <= 0 usa 15 minutos.
func NewReservationService(engine Runner, records repository.StockRecordRepository, catalog repository.ProductRepository, ttl time.Duration, log *logger.Logger, m *metrics.Metrics) *ReservationService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ReservationService{
		engine:  engine,
		records: records,
		catalog: catalog,
		ttl:     ttl,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Snapshot devuelve la vista actual del producto, leyendo directo del almacén
// (sin transacción). Las reservas vencidas se descuentan en memoria; su
// eliminación real ocurre en la próxima transacción que toque el producto.
// Si no hay registro pero el producto existe en catálogo, devuelve estado cero.
func (s *ReservationService) Snapshot(ctx context.Context, productID string) (entity.StockSnapshot, error) {
	if productID == "" {
		return entity.StockSnapshot{}, domain.ErrInvalidInput
	}
	doc, version, err := s.records.Get(ctx, productID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return entity.StockSnapshot{}, errors.Join(domain.ErrTransient, err)
		}
		product, perr := s.catalog.GetByID(ctx, productID)
		if perr != nil {
			return entity.StockSnapshot{}, errors.Join(domain.ErrTransient, perr)
		}
		if product == nil {
			return entity.StockSnapshot{}, domain.ErrNotFound
		}
		// producto sin registro: stock cero hasta la primera escritura
		return entity.StockRecord{ProductID: productID, Reservations: map[string]entity.Reservation{}}.Snapshot(), nil
	}
	rec := entity.Coerce(productID, doc)
	rec.PruneExpired(s.now())
	snap := rec.Snapshot()
	snap.Version = int64(version)
	return snap, nil
}

// GetAvailable devuelve el stock vendible (available - reserved).
func (s *ReservationService) GetAvailable(ctx context.Context, productID string) (int, error) {
	snap, err := s.Snapshot(ctx, productID)
	if err != nil {
		return 0, err
	}
	return snap.Sellable, nil
}

// ListProducts lista el catálogo paginado (la UI lo usa para navegar antes
// de consultar stock por producto).
func (s *ReservationService) ListProducts(ctx context.Context, limit, offset int) ([]*entity.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.catalog.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.Join(domain.ErrTransient, err)
	}
	return list, nil
}

// Reserve aparta quantity unidades bajo key con la vigencia configurada.
// Rechaza ErrInsufficientStock si el vendible no alcanza al momento del
// commit, ErrInvalidInput ante cantidad no positiva o clave vacía y
// ErrInvalidReservation si la clave ya tiene una reserva activa.
func (s *ReservationService) Reserve(ctx context.Context, productID string, quantity int, key string) error {
	if quantity <= 0 || key == "" || productID == "" {
		s.metrics.Reservations.WithLabelValues("reserve", "rejected").Inc()
		return domain.ErrInvalidInput
	}
	expiresAt := s.now().Add(s.ttl)
	_, err := s.runAtomic(ctx, productID, func(rec *entity.StockRecord) error {
		return rec.Reserve(key, quantity, expiresAt)
	})
	s.count("reserve", err)
	return err
}

// Confirm consume quantity unidades de la reserva bajo key (compra
// confirmada). Pedir más de lo reservado, o confirmar una reserva vencida o
// inexistente, rechaza ErrInvalidReservation.
func (s *ReservationService) Confirm(ctx context.Context, productID string, quantity int, key string) error {
	if quantity <= 0 || key == "" || productID == "" {
		s.metrics.Reservations.WithLabelValues("confirm", "rejected").Inc()
		return domain.ErrInvalidInput
	}
	_, err := s.runAtomic(ctx, productID, func(rec *entity.StockRecord) error {
		return rec.Confirm(key, quantity)
	})
	s.count("confirm", err)
	return err
}

// Release libera la reserva bajo key. Idempotente: liberar una reserva
// inexistente es no-op sin commit, no un error.
func (s *ReservationService) Release(ctx context.Context, productID, key string) error {
	if key == "" || productID == "" {
		s.metrics.Reservations.WithLabelValues("release", "rejected").Inc()
		return domain.ErrInvalidInput
	}
	_, err := s.runAtomic(ctx, productID, func(rec *entity.StockRecord) error {
		if !rec.Release(key) {
			return errSkipCommit
		}
		return nil
	})
	s.count("release", err)
	return err
}

// UpdateAvailable sobreescribe el available (ruta admin). No toca las
// reservas vigentes; honrarlas contra el nuevo total es decisión del caller.
// El producto debe existir en catálogo; el registro se crea si hace falta.
func (s *ReservationService) UpdateAvailable(ctx context.Context, productID string, available int) error {
	if productID == "" || available < 0 {
		s.metrics.Reservations.WithLabelValues("update", "rejected").Inc()
		return domain.ErrInvalidInput
	}
	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return errors.Join(domain.ErrTransient, err)
	}
	if product == nil {
		return domain.ErrNotFound
	}
	_, err = s.runAtomic(ctx, productID, func(rec *entity.StockRecord) error {
		return rec.SetAvailable(available)
	})
	s.count("update", err)
	return err
}

// runAtomic ejecuta la transformación y reintenta una sola vez ante fallo
// transitorio antes de subirlo al caller; los rechazos de dominio son
// terminales y suben tal cual.
func (s *ReservationService) runAtomic(ctx context.Context, productID string, fn func(rec *entity.StockRecord) error) (entity.StockRecord, error) {
	rec, err := s.engine.Atomic(ctx, productID, fn)
	if err != nil && errors.Is(err, domain.ErrTransient) && !domain.IsRejection(err) {
		s.log.Warn().Err(err).Str("product_id", productID).Msg("fallo transitorio, reintento interno")
		rec, err = s.engine.Atomic(ctx, productID, fn)
	}
	return rec, err
}

func (s *ReservationService) count(op string, err error) {
	switch {
	case err == nil:
		s.metrics.Reservations.WithLabelValues(op, "ok").Inc()
	case domain.IsRejection(err):
		s.metrics.Reservations.WithLabelValues(op, "rejected").Inc()
	default:
		s.metrics.Reservations.WithLabelValues(op, "transient").Inc()
	}
}

package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/reservas-api/internal/domain"
	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/internal/domain/repository"
	"github.com/jhoicas/reservas-api/pkg/logger"
	"github.com/jhoicas/reservas-api/pkg/metrics"
)

// DefaultRetryBudget reintentos ante conflicto. Los conflictos son raros en
// esta carga y reintentar es barato; un presupuesto corto alcanza.
const DefaultRetryBudget = 4

// errSkipCommit lo devuelve una transformación para indicar "sin cambios":
// el motor no persiste ni notifica (salvo poda de reservas vencidas).
var errSkipCommit = errors.New("transformación sin cambios")

// Engine es el motor transaccional: lee, coacciona el esquema legacy, poda
// reservas vencidas, aplica la transformación y confirma con compare-and-swap,
// reintentando con lectura fresca ante conflicto hasta agotar el presupuesto.
type Engine struct {
	records  repository.StockRecordRepository
	notifier Notifier
	retries  int
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewEngine construye el motor. notifier puede ser nil (sin suscriptores).
// retries <= 0 usa DefaultRetryBudget.
func NewEngine(records repository.StockRecordRepository, notifier Notifier, retries int, log *logger.Logger, m *metrics.Metrics) *Engine {
	if retries <= 0 {
		retries = DefaultRetryBudget
	}
	return &Engine{
		records:  records,
		notifier: notifier,
		retries:  retries,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// SetNotifier fija el notifier tras el armado. La caché de snapshots necesita
// al servicio como reader y el motor a la caché como notifier; este setter
// rompe ese ciclo de construcción. Llamar antes de servir tráfico.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Atomic aplica fn sobre el registro actual del producto y lo persiste solo
// si nadie más escribió en medio. Un rechazo de dominio de fn nunca se
// reintenta: con la misma información el resultado no cambia. Un conflicto
// sí: alguien más confirmó y hay que reevaluar sobre estado fresco.
//
// Si el registro no existe, fn observa el estado cero (creación implícita
// en la primera escritura). Available, reserved y reservations se confirman
// juntos o no se confirma nada.
func (e *Engine) Atomic(ctx context.Context, productID string, fn func(rec *entity.StockRecord) error) (entity.StockRecord, error) {
	if productID == "" {
		return entity.StockRecord{}, domain.ErrInvalidInput
	}

	for attempt := 0; attempt < e.retries; attempt++ {
		doc, version, err := e.records.Get(ctx, productID)
		found := true
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return entity.StockRecord{}, fmt.Errorf("leer registro de stock: %w", errors.Join(domain.ErrTransient, err))
			}
			doc, version, found = entity.StockDoc{}, 0, false
		}

		now := e.now()
		rec := entity.Coerce(productID, doc)
		pruned := rec.PruneExpired(now)

		if err := fn(&rec); err != nil {
			// Sin cambios: persistir solo si hubo poda o el doc existía con
			// esquema legacy, para que la expiración pasiva y la migración
			// sí avancen. Un no-op sobre registro inexistente no lo crea.
			if errors.Is(err, errSkipCommit) {
				if pruned == 0 && (!found || !doc.Legacy()) {
					return rec, nil
				}
			} else {
				return rec, err
			}
		}

		rec.UpdatedAt = now
		newVersion, err := e.records.CompareAndSwap(ctx, productID, rec.Doc(), version)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				e.metrics.TxConflicts.Inc()
				e.log.Debug().Str("product_id", productID).Int("attempt", attempt+1).Msg("conflicto de escritura, reintentando")
				continue
			}
			return entity.StockRecord{}, fmt.Errorf("confirmar registro de stock: %w", errors.Join(domain.ErrTransient, err))
		}

		e.metrics.TxCommits.Inc()
		if e.notifier != nil {
			// el snapshot lleva la versión confirmada: la capa de suscripción
			// descarta con ella lo que llegue fuera del orden de commit
			snap := rec.Snapshot()
			snap.Version = int64(newVersion)
			e.notifier.StockChanged(snap)
		}
		return rec, nil
	}

	e.metrics.TxExhausted.Inc()
	e.log.Warn().Str("product_id", productID).Int("budget", e.retries).Msg("presupuesto de reintentos agotado")
	return entity.StockRecord{}, fmt.Errorf("transacción de stock sobre %s: %w", productID, errors.Join(domain.ErrTransient, domain.ErrConflict))
}

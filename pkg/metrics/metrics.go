package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa los contadores Prometheus del servicio de stock.
// Se construye contra un Registerer inyectado: cada instancia (o test)
// tiene su propio registro, sin estado global.
type Metrics struct {
	TxCommits   prometheus.Counter
	TxConflicts prometheus.Counter
	TxExhausted prometheus.Counter

	// Reservations cuenta operaciones por op (reserve|confirm|release|update)
	// y resultado (ok|rejected|transient).
	Reservations *prometheus.CounterVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New registra y devuelve los contadores en reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TxCommits: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_tx_commits_total",
			Help: "Transacciones de stock confirmadas.",
		}),
		TxConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_tx_conflicts_total",
			Help: "Colisiones de concurrencia optimista reintentadas.",
		}),
		TxExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_tx_retries_exhausted_total",
			Help: "Transacciones abandonadas por agotar el presupuesto de reintentos.",
		}),
		Reservations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_reservation_ops_total",
			Help: "Operaciones de reserva por tipo y resultado.",
		}, []string{"op", "result"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_cache_hits_total",
			Help: "Lecturas servidas desde la caché de snapshots.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_cache_misses_total",
			Help: "Lecturas que cayeron al almacén.",
		}),
	}
}

// NewNop devuelve métricas sobre un registro descartable (tests).
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

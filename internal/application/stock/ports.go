package stock

import (
	"context"

	"github.com/jhoicas/reservas-api/internal/domain/entity"
)

// Runner ejecuta una transformación atómica sobre el registro de stock de un
// producto. Garantiza lectura fresca en cada intento y un solo commit por
// llamada lógica; la atomicidad viene del compare-and-swap del almacén,
// no de locks en proceso.
type Runner interface {
	Atomic(ctx context.Context, productID string, fn func(rec *entity.StockRecord) error) (entity.StockRecord, error)
}

// Notifier recibe el snapshot de cada commit (capa de suscripción, bus de
// eventos). Se invoca después de confirmar, nunca dentro de la transacción.
type Notifier interface {
	StockChanged(snap entity.StockSnapshot)
}

// FanoutNotifier reparte cada snapshot a varios notifiers (caché local +
// puente entre instancias).
func FanoutNotifier(notifiers ...Notifier) Notifier {
	return fanout(notifiers)
}

type fanout []Notifier

func (f fanout) StockChanged(snap entity.StockSnapshot) {
	for _, n := range f {
		n.StockChanged(snap)
	}
}

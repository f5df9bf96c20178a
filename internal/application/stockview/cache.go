package stockview

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/pkg/logger"
	"github.com/jhoicas/reservas-api/pkg/metrics"
)

// Reader es la fuente autoritativa de snapshots cuando la caché no tiene el
// producto. Lo implementa stock.ReservationService.
type Reader interface {
	Snapshot(ctx context.Context, productID string) (entity.StockSnapshot, error)
}

// Config parámetros de la caché de snapshots.
type Config struct {
	Size int           // entradas LRU; <= 0 usa 1024
	TTL  time.Duration // vigencia de una entrada; <= 0 usa 30s
}

// Cache da a la UI una vista push de available-reserved sin tocar el motor
// transaccional en cada render. Se construye explícitamente con sus
// dependencias: nada de estado global compartido entre instancias o tests.
//
// Cada snapshot entregado es autoritativo al momento de la entrega, no un
// lock: la decisión de compra real siempre es una transacción fresca.
//
// Las notificaciones de commit llegan sin orden garantizado: dos escritores
// del mismo producto pueden confirmar N y N+1 y notificar al revés. La caché
// y el fan-out ordenan por la versión del snapshot y descartan lo viejo, así
// los suscriptores ven versiones estrictamente crecientes por producto.
type Cache struct {
	reader  Reader
	snaps   *expirable.LRU[string, entity.StockSnapshot]
	log     *logger.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	subs   map[string]*productSubs
	nextID uint64
}

// bufferPerSub tamaño del buffer por suscriptor. Con el buffer lleno se
// descarta el snapshot más viejo del buffer, nunca el recién llegado: un
// suscriptor lento pierde intermedios pero siempre converge al último valor.
const bufferPerSub = 16

// productSubs agrupa los suscriptores de un producto con la última versión
// repartida; se descarta completo cuando el último suscriptor se va.
type productSubs struct {
	lastVersion int64
	subs        map[uint64]*subscriber
}

type subscriber struct {
	ch   chan entity.StockSnapshot
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// New construye la caché de snapshots con fall-through al reader.
func New(reader Reader, cfg Config, log *logger.Logger, m *metrics.Metrics) *Cache {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &Cache{
		reader:  reader,
		snaps:   expirable.NewLRU[string, entity.StockSnapshot](cfg.Size, nil, cfg.TTL),
		log:     log,
		metrics: m,
		subs:    map[string]*productSubs{},
	}
}

// Get devuelve el snapshot cacheado o cae al reader y cachea el resultado.
// Una lectura vieja nunca pisa una entrada más nueva: si un commit se coló
// entre la lectura y el cacheo, gana (y se devuelve) la entrada del commit.
func (c *Cache) Get(ctx context.Context, productID string) (entity.StockSnapshot, error) {
	if snap, ok := c.snaps.Get(productID); ok {
		c.metrics.CacheHits.Inc()
		return snap, nil
	}
	c.metrics.CacheMisses.Inc()
	snap, err := c.reader.Snapshot(ctx, productID)
	if err != nil {
		return entity.StockSnapshot{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.snaps.Get(productID); ok && cur.Version > snap.Version {
		return cur, nil
	}
	c.snaps.Add(productID, snap)
	return snap, nil
}

// Subscribe entrega de inmediato el snapshot actual y luego uno por cada
// commit sobre el producto, en orden de commit. onUpdate corre en una
// goroutine propia del suscriptor; tras llamar cancel no se entrega nada más.
func (c *Cache) Subscribe(ctx context.Context, productID string, onUpdate func(entity.StockSnapshot)) (cancel func(), err error) {
	snap, err := c.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{
		ch:   make(chan entity.StockSnapshot, bufferPerSub),
		done: make(chan struct{}),
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	ps := c.subs[productID]
	if ps == nil {
		ps = &productSubs{subs: map[uint64]*subscriber{}}
		c.subs[productID] = ps
	}
	ps.subs[id] = sub
	// la entrega inicial fija el piso: commits anteriores que lleguen tarde
	// no deben seguirla
	if snap.Version > ps.lastVersion {
		ps.lastVersion = snap.Version
	}
	c.mu.Unlock()

	go func() {
		// entrega inicial, luego el flujo de commits
		select {
		case <-sub.done:
			return
		default:
			onUpdate(snap)
		}
		for {
			select {
			case <-sub.done:
				return
			case next := <-sub.ch:
				select {
				case <-sub.done:
					return
				default:
					onUpdate(next)
				}
			}
		}
	}()

	return func() {
		sub.close()
		c.mu.Lock()
		if ps := c.subs[productID]; ps != nil {
			delete(ps.subs, id)
			if len(ps.subs) == 0 {
				delete(c.subs, productID)
			}
		}
		c.mu.Unlock()
	}, nil
}

// StockChanged implementa el puerto Notifier del motor: actualiza la caché y
// reparte el snapshot a los suscriptores del producto. Los snapshots con
// versión anterior a la última vista se descartan; el fan-out es no
// bloqueante y ante buffer lleno descarta lo más viejo del buffer.
func (c *Cache) StockChanged(snap entity.StockSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.snaps.Get(snap.ProductID); !ok || snap.Version == 0 || snap.Version >= cur.Version {
		c.snaps.Add(snap.ProductID, snap)
	}

	ps := c.subs[snap.ProductID]
	if ps == nil {
		return
	}
	if snap.Version > 0 {
		if snap.Version <= ps.lastVersion {
			c.log.Debug().Str("product_id", snap.ProductID).Int64("version", snap.Version).Msg("snapshot fuera de orden descartado")
			return
		}
		ps.lastVersion = snap.Version
	}
	for _, sub := range ps.subs {
		select {
		case sub.ch <- snap:
		default:
			// buffer lleno: sale el más viejo, entra el más nuevo
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
			c.log.Warn().Str("product_id", snap.ProductID).Msg("suscriptor lento, snapshot intermedio descartado")
		}
	}
}

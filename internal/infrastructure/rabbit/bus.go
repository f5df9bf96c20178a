package rabbit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jhoicas/reservas-api/internal/domain/entity"
	"github.com/jhoicas/reservas-api/pkg/logger"
)

// stockEvent es el mensaje que viaja por el exchange fanout. InstanceID
// permite a cada instancia ignorar sus propios eventos.
type stockEvent struct {
	InstanceID string               `json:"instance_id"`
	Snapshot   entity.StockSnapshot `json:"snapshot"`
}

// Bus propaga los commits de stock entre instancias por un exchange fanout.
// Implementa stock.Notifier para el lado de publicación; Consume alimenta la
// caché local con los commits de las demás instancias.
type Bus struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	instanceID string
	log        *logger.Logger
}

// New conecta y declara el exchange fanout durable.
func New(url, exchange string, log *logger.Logger) (*Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Bus{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		instanceID: uuid.New().String(),
		log:        log,
	}, nil
}

// Close cierra canal y conexión.
func (b *Bus) Close() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// StockChanged publica el snapshot de un commit local. Mejor esfuerzo: un
// fallo de publicación se registra y no afecta la transacción ya confirmada.
func (b *Bus) StockChanged(snap entity.StockSnapshot) {
	body, err := json.Marshal(stockEvent{InstanceID: b.instanceID, Snapshot: snap})
	if err != nil {
		b.log.Error().Err(err).Msg("rabbit: codificar evento de stock")
		return
	}
	err = b.ch.Publish(b.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		b.log.Error().Err(err).Str("product_id", snap.ProductID).Msg("rabbit: publicar evento de stock")
	}
}

// Consume declara una cola exclusiva, la ata al exchange y entrega a deliver
// los snapshots de las demás instancias hasta que ctx termine.
func (b *Bus) Consume(ctx context.Context, deliver func(entity.StockSnapshot)) error {
	queue, err := b.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := b.ch.QueueBind(queue.Name, "", b.exchange, false, nil); err != nil {
		return err
	}
	msgs, err := b.ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev stockEvent
				if err := json.Unmarshal(m.Body, &ev); err != nil {
					b.log.Error().Err(err).Msg("rabbit: evento de stock inválido")
					_ = m.Ack(false)
					continue
				}
				if ev.InstanceID != b.instanceID {
					deliver(ev.Snapshot)
				}
				_ = m.Ack(false)
			}
		}
	}()
	return nil
}

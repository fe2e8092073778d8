// internal/audit/amqp.go
package audit

import (
	"context"
	"encoding/json"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPRecorder publishes entries to a topic exchange for downstream
// consumers (notifications, reporting). A nil recorder is a no-op, so
// wiring can skip the broker entirely when it is not configured.
type AMQPRecorder struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPRecorder(url, exchange string) (*AMQPRecorder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPRecorder{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *AMQPRecorder) Record(ctx context.Context, e Entry) error {
	if r == nil || r.ch == nil {
		return nil
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := "audit." + strings.ToLower(e.Action)
	return r.ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   e.At,
	})
}

func (r *AMQPRecorder) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

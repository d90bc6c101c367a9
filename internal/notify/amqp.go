package notify

import (
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPPublisher дублирует события во внешний брокер, позволяя
// масштабировать рассылку за пределы одного процесса.
type AMQPPublisher struct {
	conn   *amqp.Connection
	queue  string
	logger *zap.Logger
}

// NewAMQPPublisher подключается к брокеру и объявляет очередь событий.
func NewAMQPPublisher(url, queue string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &AMQPPublisher{conn: conn, queue: queue, logger: logger}, nil
}

// Publish отправляет событие в очередь. Доставка негарантированная:
// ошибка логируется и не возвращается вызывающему.
func (p *AMQPPublisher) Publish(event string, payload any) {
	body, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		p.logger.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.logger.Error("amqp channel", zap.String("event", event), zap.Error(err))
		return
	}
	defer ch.Close()

	err = ch.Publish(
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		p.logger.Error("amqp publish", zap.String("event", event), zap.Error(err))
	}
}

// Close закрывает соединение с брокером.
func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

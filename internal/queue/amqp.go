package queue

import (
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/unclebandit/bulk-messenger/internal/logger"
)

// AMQPQueue publishes and consumes through RabbitMQ. Each topic is a durable queue.
type AMQPQueue struct {
	Log *logger.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
	wg   sync.WaitGroup
}

func NewAMQPQueue(url string, log *logger.Logger) (*AMQPQueue, error) {
	if log == nil {
		log = logger.Nop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return &AMQPQueue{Log: log.WithComponent("amqp"), conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *AMQPQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	dq, err := q.declare(topic)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	return q.ch.Publish(
		"",
		dq.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		},
	)
}

// Subscribe consumes topic with manual acks. A failed delivery is requeued once,
// then dropped.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	dq, err := q.declare(topic)
	if err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	msgs, err := q.ch.Consume(
		dq.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for d := range msgs {
			if err := handler(d.Body); err != nil {
				q.Log.Warn().Err(err).Str("topic", topic).Bool("redelivered", d.Redelivered).Msg("delivery failed")
				d.Nack(false, !d.Redelivered)
				continue
			}
			d.Ack(false)
		}
	}()
	return nil
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	chErr := q.ch.Close()
	connErr := q.conn.Close()
	q.mu.Unlock()
	q.wg.Wait()
	if chErr != nil {
		return chErr
	}
	return connErr
}

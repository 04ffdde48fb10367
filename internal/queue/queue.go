package queue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/bulk-messenger/internal/logger"
)

// DeliveryTopic carries one JSON-encoded model.DeliveryEvent per send attempt.
const DeliveryTopic = "message_deliveries"

var ErrNoSubscribers = errors.New("no subscribers")

// Handler processes one payload. A returned error triggers a retry.
type Handler func(payload []byte) error

// Queue interface
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue is an in-process queue with retry
type InMemoryQueue struct {
	MaxRetries int
	// Backoff is multiplied by the attempt number between retries
	Backoff time.Duration
	Log     *logger.Logger

	mu       sync.Mutex
	handlers map[string][]Handler
	closed   bool
	wg       sync.WaitGroup
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *logger.Logger) *InMemoryQueue {
	if log == nil {
		log = logger.Nop()
	}
	return &InMemoryQueue{
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		Log:        log.WithComponent("queue"),
		handlers:   make(map[string][]Handler),
	}
}

// Publish hands the payload to every subscriber of topic
func (q *InMemoryQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed")
	}
	handlers := append([]Handler(nil), q.handlers[topic]...)
	q.wg.Add(len(handlers))
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("%w for topic %s", ErrNoSubscribers, topic)
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, payload)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler Handler, payload []byte) {
	defer q.wg.Done()

	for attempt := 0; attempt <= q.MaxRetries; attempt++ {
		err := handler(payload)
		if err == nil {
			return
		}
		q.Log.Warn().Err(err).
			Str("topic", topic).
			Int("attempt", attempt+1).
			Int("max_retries", q.MaxRetries).
			Msg("job failed")

		if attempt == q.MaxRetries {
			q.Log.Error().Str("topic", topic).Msg("job permanently failed")
			return
		}
		time.Sleep(time.Duration(attempt+1) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close stops accepting publishes and waits for in-flight jobs
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

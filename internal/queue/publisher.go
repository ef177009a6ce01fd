package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends reservation events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev ReservationEvent) error
	Close() error
}

// RabbitPublisher keeps one connection and channel open and redials
// lazily when the broker dropped them.  Messages go through the default
// exchange to EventsQueue and are marked persistent.
type RabbitPublisher struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher connects to url and declares EventsQueue.
func NewRabbitPublisher(url string, logger *zap.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &RabbitPublisher{url: url, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	logger.Info("rabbitmq publisher connected", zap.String("queue", EventsQueue))
	return p, nil
}

// connect must be called with mu held (or before p is shared).
func (p *RabbitPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			p.logger.Error("rabbitmq reconnect failed", zap.Error(err))
			return err
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", EventsQueue, false, false, pub); err != nil {
		p.logger.Error("publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return err
	}
	p.logger.Debug("event published",
		zap.String("type", string(ev.Type)),
		zap.String("event_id", ev.EventID),
		zap.Uint64("request_id", ev.RequestID))
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher drops events.  It is used when EVENTS_ENABLED is false.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationEvent) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

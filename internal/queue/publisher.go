package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher sends booking events.  Callers treat publishing as best effort.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
}

// NopPublisher drops every event.  Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }

// Publishing runs inside request handlers, so a dead broker must fail fast.
const (
	defaultDialTimeout = 2 * time.Second
	defaultRedialDelay = 15 * time.Second
)

// ErrBrokerUnavailable is returned without dialing while the publisher waits
// out RedialDelay after a failed connect.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// AMQPPublisher publishes persistent JSON messages to QueueName through the
// default exchange.  The connection is opened lazily and reopened after a
// failure, at most once per RedialDelay.
type AMQPPublisher struct {
	url         string
	DialTimeout time.Duration
	RedialDelay time.Duration

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	nextDial time.Time
}

// NewAMQPPublisher returns a publisher for the broker at url.  No connection
// is made until the first Publish.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, DialTimeout: defaultDialTimeout, RedialDelay: defaultRedialDelay}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()
	if time.Now().Before(p.nextDial) {
		return nil, ErrBrokerUnavailable
	}

	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		p.nextDial = time.Now().Add(p.RedialDelay)
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.nextDial = time.Now().Add(p.RedialDelay)
		return nil, err
	}
	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// Publish marshals ev and sends it.  Errors are logged and returned.
func (p *AMQPPublisher) Publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("rabbitmq: marshal event failed")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if errors.Is(err, ErrBrokerUnavailable) {
		return err
	}
	if err != nil {
		log.Error().Err(err).Msg("rabbitmq: connect failed")
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", QueueName, false, false, pub); err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("rabbitmq: publish failed")
		p.closeLocked()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

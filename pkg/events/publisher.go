// Package events publishes loan submission status transitions to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/yourorg/manteia/internal/loan"
)

// DefaultExchange is a topic exchange; routing keys are "loan.<stage>".
const DefaultExchange = "manteia.loans"

// Channel is the slice of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the wire body of a status event.
type Message struct {
	AttemptID string `json:"attempt_id"`
	Stage     string `json:"stage"`
	Borrower  string `json:"borrower"`
	TxHash    string `json:"tx_hash,omitempty"`
	Message   string `json:"message"`
	At        int64  `json:"at"`
}

// Encode turns an event into its routing key and JSON body.
func Encode(ev loan.Event) (string, []byte, error) {
	body, err := json.Marshal(Message{
		AttemptID: ev.AttemptID.String(),
		Stage:     string(ev.Stage),
		Borrower:  ev.Actor.Hex(),
		TxHash:    ev.TxHash,
		Message:   ev.Message,
		At:        ev.At.Unix(),
	})
	if err != nil {
		return "", nil, err
	}
	return "loan." + string(ev.Stage), body, nil
}

// Publisher implements loan.Reporter over an AMQP channel.
type Publisher struct {
	ch       Channel
	exchange string
	conn     *amqp.Connection
}

// NewPublisher wraps an already declared channel.
func NewPublisher(ch Channel, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{ch: ch, exchange: exchange}
}

// Dial connects with backoff, opens a channel and declares the exchange.
func Dial(url, exchange string, log zerolog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := connect(url, 5, log)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func connect(url string, attempts int, log zerolog.Logger) (*amqp.Connection, error) {
	var (
		conn *amqp.Connection
		err  error
		wait = time.Second
	)
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Dur("retry_in", wait).Msg("rabbitmq unavailable")
		if i+1 < attempts {
			time.Sleep(wait)
		}
		wait = time.Duration(math.Pow(2, float64(i+1))) * time.Second
	}
	return nil, err
}

func (p *Publisher) Report(ctx context.Context, ev loan.Event) error {
	key, body, err := Encode(ev)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    ev.AttemptID.String(),
		Body:         body,
		Timestamp:    ev.At,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Close tears down the connection opened by Dial; it is a no-op otherwise.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// Package events publishes campaign lifecycle events to an AMQP topic
// exchange so external systems can persist summary statistics. Publishing is
// optional — a Nop publisher stands in when no broker is configured.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/autommensor/wabot/pkg/logger"
)

// Routing keys.
const (
	KeyCampaignStarted  = "campaign.started"
	KeyCampaignFinished = "campaign.finished"
)

// Meta identifies and orders an event.
type Meta struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Envelope is the published wire format.
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

// CampaignStarted is emitted when a bulk run begins.
type CampaignStarted struct {
	CampaignID string `json:"campaign_id"`
	Template   string `json:"template"`
	Total      int    `json:"total"`
}

// CampaignFinished is emitted after the final progress snapshot.
type CampaignFinished struct {
	CampaignID string `json:"campaign_id"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
	Cancelled  bool   `json:"cancelled"`
}

// Publisher delivers envelopes by routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, data interface{}) error
	Close() error
}

// NewEnvelope stamps data with a fresh Meta.
func NewEnvelope(kind string, data interface{}) Envelope {
	return Envelope{
		Meta: Meta{
			ID:         uuid.NewString(),
			Kind:       kind,
			OccurredAt: time.Now().UTC(),
		},
		Data: data,
	}
}

// --- AMQP publisher ---

type amqpPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

// NewAMQP connects to the broker and declares the topic exchange.
func NewAMQP(url, exchange string) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	logger.InfoCF("events", "Campaign event publisher connected", map[string]interface{}{
		"exchange": exchange,
	})
	return &amqpPublisher{conn: conn, exchange: exchange}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, key string, data interface{}) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	env := NewEnvelope(key, data)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.OccurredAt,
		Body:         body,
	})
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

// --- Nop publisher ---

// Nop discards all events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, key string, data interface{}) error { return nil }
func (Nop) Close() error                                                    { return nil }

var (
	_ Publisher = (*amqpPublisher)(nil)
	_ Publisher = Nop{}
)

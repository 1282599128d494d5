package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	exchangeName = "ledger.events"
	dialTimeout  = 10 * time.Second
)

// TransactionRecordedEvent is the payload published after a journal entry
// commits. Amounts are fixed-point strings at four decimal places.
type TransactionRecordedEvent struct {
	TransactionID     string    `json:"transaction_id"`
	Type              string    `json:"type"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	SourceWalletID    *string   `json:"source_wallet_id,omitempty"`
	DestinationWallet *string   `json:"destination_wallet_id,omitempty"`
	RelatedEntityType string    `json:"related_entity_type"`
	RelatedEntityID   string    `json:"related_entity_id"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// Publisher implements ports.EventPublisher on a durable RabbitMQ topic
// exchange. Events are emitted after the database transaction commits, so a
// publish failure never rolls back a balance change; the executor treats
// errors from here as best-effort.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	log     zerolog.Logger
}

// NewPublisher dials RabbitMQ, opens a channel and declares the exchange.
func NewPublisher(amqpURL string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{
		Dial: amqp091.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchangeName, err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
		log:     logger.NewComponent(log, "rabbitmq_publisher"),
	}, nil
}

// PublishTransactionRecorded emits a transaction.recorded.<type> event.
func (p *Publisher) PublishTransactionRecorded(ctx context.Context, txn *domain.Transaction) error {
	event := TransactionRecordedEvent{
		TransactionID:     txn.ID.String(),
		Type:              string(txn.Type),
		Amount:            txn.Amount.String(),
		Currency:          txn.Amount.Currency(),
		RelatedEntityType: string(txn.RelatedEntityType),
		RelatedEntityID:   txn.RelatedEntityID,
		RecordedAt:        txn.CreatedAt,
	}
	if txn.SourceWalletID != nil {
		s := txn.SourceWalletID.String()
		event.SourceWalletID = &s
	}
	if txn.DestinationWalletID != nil {
		s := txn.DestinationWalletID.String()
		event.DestinationWallet = &s
	}

	routingKey := "transaction.recorded." + string(txn.Type)
	return p.publish(ctx, routingKey, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		exchangeName, routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        jsonBody,
		},
	)
	if err == nil {
		return nil
	}

	// One-shot retry on a fresh channel; broker restarts kill channels but
	// usually leave the connection recoverable.
	p.log.Warn().Err(err).Str("routing_key", routingKey).Msg("publish failed, reopening channel")
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	p.channel = ch
	if exErr := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); exErr != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        jsonBody,
	})
}

// Close shuts the channel and connection down.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

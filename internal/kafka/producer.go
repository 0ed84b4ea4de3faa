// Package kafka streams ticket lifecycle events to a broker. The producer is
// optional: when mock mode is on, events are logged and dropped, which keeps
// local development broker-free.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ticketdesk/internal/config"
	"ticketdesk/internal/logger"
	"ticketdesk/internal/models"
)

type TicketEvents struct {
	created  *kafka.Writer
	updated  *kafka.Writer
	deleted  *kafka.Writer
	mockMode bool
	log      *logger.Logger
}

func NewTicketEvents(cfg config.KafkaConfig, log *logger.Logger) *TicketEvents {
	events := &TicketEvents{mockMode: cfg.MockMode, log: log}
	if cfg.MockMode {
		return events
	}
	events.created = newWriter(cfg.Brokers, cfg.Topics.TicketCreated)
	events.updated = newWriter(cfg.Brokers, cfg.Topics.TicketUpdated)
	events.deleted = newWriter(cfg.Brokers, cfg.Topics.TicketDeleted)
	return events
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
}

func (e *TicketEvents) PublishTicketCreated(ticket models.Ticket) error {
	return e.publish(e.created, "ticket_created", ticket.TicketNumber, ticket)
}

func (e *TicketEvents) PublishTicketUpdated(ticket models.Ticket) error {
	return e.publish(e.updated, "ticket_updated", ticket.TicketNumber, ticket)
}

func (e *TicketEvents) PublishTicketDeleted(ticketNumber string) error {
	payload := map[string]string{"ticket_number": ticketNumber}
	return e.publish(e.deleted, "ticket_deleted", ticketNumber, payload)
}

func (e *TicketEvents) publish(writer *kafka.Writer, event, key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if e.mockMode {
		e.log.Info("KAFKA", "[MOCK] "+event+": "+string(msgBytes))
		return nil
	}

	e.log.Debug("KAFKA", "Publishing ["+event+"]: "+string(msgBytes))
	return writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (e *TicketEvents) Close() {
	for _, writer := range []*kafka.Writer{e.created, e.updated, e.deleted} {
		if writer != nil {
			writer.Close()
		}
	}
}

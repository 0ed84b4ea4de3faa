package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"ticketdesk/internal/logger"
)

// EnsureTopicsExist creates the ticket event topics on the broker controller
// if they are not already there. A failure on one topic does not stop the
// others.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.Info("KAFKA", "Created topic: "+topic)
		case strings.Contains(err.Error(), "already exists"):
			log.Debug("KAFKA", "Topic already exists: "+topic)
		default:
			log.Warn("KAFKA", "Failed to create topic "+topic+": "+err.Error())
		}
	}

	// Give the broker a moment to propagate the new topics.
	time.Sleep(1 * time.Second)
	return nil
}

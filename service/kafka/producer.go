package kafka

import (
	"fmt"

	"github.com/Shopify/sarama"
)

// SendSync publishes key/value to a topic and waits for the ack.
// Callers in the send path treat failure as best-effort: log, no retry.
func SendSync(topic string, key, value []byte) error {
	if Producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	_, _, err := Producer.SendMessage(msg)
	return err
}

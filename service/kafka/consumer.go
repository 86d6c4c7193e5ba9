package kafka

import (
	"context"

	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

type ConsumerGroupHandler struct{}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	glog.Info("consumer group setup")
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	glog.Info("consumer group cleanup")
	return nil
}

func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		handler, err := GetHandler(msg.Topic)
		if err != nil {
			glog.Warningf("no handler for topic %s: %v", msg.Topic, err)
		} else if err := handler(msg.Topic, msg.Key, msg.Value); err != nil {
			glog.Errorf("handler error for topic %s: %v", msg.Topic, err)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// StartConsumerGroup consumes until ctx is done.
func StartConsumerGroup(ctx context.Context, brokers []string, groupID string, topics []string) error {
	group, err := sarama.NewConsumerGroup(brokers, groupID, BuildBaseConfig())
	if err != nil {
		return err
	}
	defer func() { _ = group.Close() }()

	go func() {
		for err := range group.Errors() {
			glog.Errorf("consumer group error: %v", err)
		}
	}()

	handler := &ConsumerGroupHandler{}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := group.Consume(ctx, topics, handler); err != nil {
			glog.Errorf("consume error: %v", err)
		}
	}
}

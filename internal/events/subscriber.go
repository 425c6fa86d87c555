package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, event Event) error

// Subscriber reads lifecycle events as a member of a consumer group.
type Subscriber struct {
	group  sarama.ConsumerGroup
	logger *zap.Logger
}

func NewSubscriber(brokers []string, groupID string, fromOldest bool, logger *zap.Logger) (*Subscriber, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if fromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	g, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Subscriber{group: g, logger: logger}, nil
}

// Consume blocks until ctx is cancelled, rejoining the group after every
// rebalance.
func (s *Subscriber) Consume(ctx context.Context, topic string, fn Handler) error {
	h := &groupHandler{fn: fn, logger: s.logger}
	for {
		if err := s.group.Consume(ctx, []string{topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume %s: %w", topic, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *Subscriber) Close() error {
	return s.group.Close()
}

type groupHandler struct {
	fn     Handler
	logger *zap.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim skips undecodable messages. A handler error stops the claim
// without marking the message, so it is redelivered.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				h.logger.Warn("Skipping malformed job event",
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
				session.MarkMessage(msg, "")
				continue
			}
			if err := h.fn(session.Context(), event); err != nil {
				return err
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"portfolio-tracker/internal/dto"
	"portfolio-tracker/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// redisNotifier carries the whole document in the message.
type redisNotifier struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	subs    *subscribers
	logger  *logger.Logger
}

func NewRedisNotifier(ctx context.Context, client *redis.Client, channel string, log *logger.Logger) (ChangeNotifier, error) {
	pubsub := client.Subscribe(ctx, channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	n := &redisNotifier{
		client:  client,
		pubsub:  pubsub,
		channel: channel,
		subs:    newSubscribers(log),
		logger:  log,
	}
	go n.loop()
	return n, nil
}

func (n *redisNotifier) loop() {
	for msg := range n.pubsub.Channel() {
		var change dto.ChangeNotification
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			n.logger.Warn("Invalid change notification payload", logger.ErrorField(err))
			continue
		}
		n.subs.dispatch(change)
	}
}

func (n *redisNotifier) Publish(ctx context.Context, change dto.ChangeNotification) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.channel, err)
	}
	return nil
}

func (n *redisNotifier) Subscribe(_ context.Context, userID string, handler func(dto.ChangeNotification)) (Subscription, error) {
	return n.subs.add(userID, handler), nil
}

func (n *redisNotifier) Close() error {
	err := n.pubsub.Close()
	if cerr := n.client.Close(); err == nil {
		err = cerr
	}
	return err
}

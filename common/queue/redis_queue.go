package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arborhq/lineage/common/logger"
)

// RedisQueue is a Redis Streams backed queue with at-least-once delivery.
// Each topic maps to one stream; subscribers share a consumer group and
// acknowledge messages only after the handler succeeds, so a failed handler
// leaves the entry pending for redelivery.
type RedisQueue struct {
	redis         *redis.Client
	consumerGroup string
	consumerName  string
	blockTimeout  time.Duration
	log           *logger.Logger
}

// NewRedisQueue creates a new Redis Streams queue
func NewRedisQueue(redisClient *redis.Client, consumerGroup string, blockTimeout time.Duration, log *logger.Logger) *RedisQueue {
	return &RedisQueue{
		redis:         redisClient,
		consumerGroup: consumerGroup,
		consumerName:  fmt.Sprintf("%s_%s", consumerGroup, uuid.New().String()[:8]),
		blockTimeout:  blockTimeout,
		log:           log,
	}
}

// Publish appends a message to the topic's stream
func (q *RedisQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	err := q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":   key,
			"value": string(message),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("XADD to %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins the consumer group for the topic and processes messages
// until the context is cancelled
func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if err := q.ensureGroup(ctx, topic); err != nil {
		return err
	}

	q.log.Info("subscribing to stream",
		"stream", topic,
		"consumer_group", q.consumerGroup,
		"consumer_name", q.consumerName)

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.log.Info("stream subscription stopping", "stream", topic)
				return
			default:
				if err := q.processNext(ctx, topic, handler); err != nil {
					q.log.Error("failed to process stream message", "stream", topic, "error", err)
					time.Sleep(1 * time.Second) // back off on error
				}
			}
		}
	}()

	return nil
}

// ensureGroup creates the consumer group if it doesn't exist
func (q *RedisQueue) ensureGroup(ctx context.Context, topic string) error {
	err := q.redis.XGroupCreateMkStream(ctx, topic, q.consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// processNext reads and processes one batch from the stream
func (q *RedisQueue) processNext(ctx context.Context, topic string, handler MessageHandler) error {
	streams, err := q.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.consumerGroup,
		Consumer: q.consumerName,
		Streams:  []string{topic, ">"},
		Count:    1,
		Block:    q.blockTimeout,
	}).Result()

	if err == redis.Nil {
		// No messages; reclaim anything abandoned by dead consumers
		return q.claimStale(ctx, topic, handler)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("XREADGROUP: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			q.handleAndAck(ctx, topic, message, handler)
		}
	}

	return nil
}

// claimStale takes over messages pending longer than a minute on other
// consumers in the group. This is what makes delivery at-least-once across
// consumer crashes.
func (q *RedisQueue) claimStale(ctx context.Context, topic string, handler MessageHandler) error {
	messages, _, err := q.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   topic,
		Group:    q.consumerGroup,
		Consumer: q.consumerName,
		MinIdle:  time.Minute,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("XAUTOCLAIM: %w", err)
	}

	for _, message := range messages {
		q.handleAndAck(ctx, topic, message, handler)
	}

	return nil
}

// handleAndAck runs the handler and acknowledges on success only
func (q *RedisQueue) handleAndAck(ctx context.Context, topic string, message redis.XMessage, handler MessageHandler) {
	key, _ := message.Values["key"].(string)
	value, _ := message.Values["value"].(string)

	if err := handler(ctx, key, []byte(value)); err != nil {
		q.log.Error("message handler error, leaving pending",
			"stream", topic, "message_id", message.ID, "key", key, "error", err)
		return
	}

	if err := q.redis.XAck(ctx, topic, q.consumerGroup, message.ID).Err(); err != nil {
		q.log.Error("failed to ACK message", "stream", topic, "message_id", message.ID, "error", err)
	}
}

// Close closes the underlying Redis connection
func (q *RedisQueue) Close() error {
	return q.redis.Close()
}

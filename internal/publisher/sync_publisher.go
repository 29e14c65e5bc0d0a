// Package publisher ships queued offline actions to Kafka.
package publisher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Alecwce/tienda-AR/internal/offline"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const SyncTopic = "cart-sync"

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ActionQueue interface {
	Drain(ctx context.Context, p offline.Processor) (offline.Result, error)
}

type SyncPublisher struct {
	interval time.Duration
	timeout  time.Duration
	queue    ActionQueue
	writer   MessageWriter
	logger   *zap.Logger
}

func NewSyncPublisher(queue ActionQueue, interval time.Duration, logger *zap.Logger, brokers ...string) *SyncPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  SyncTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newSyncPublisher(queue, w, interval, logger)
}

func newSyncPublisher(queue ActionQueue, writer MessageWriter, interval time.Duration, logger *zap.Logger) *SyncPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncPublisher{
		interval: interval,
		timeout:  5 * time.Second,
		queue:    queue,
		writer:   writer,
		logger:   logger,
	}
}

// Run drains the queue every interval until ctx is done.
func (p *SyncPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := p.Flush(ctx); err != nil {
				p.logger.Warn("offline queue flush failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Flush publishes every pending action once. Actions that fail to publish stay queued.
func (p *SyncPublisher) Flush(ctx context.Context) (offline.Result, error) {
	res, err := p.queue.Drain(ctx, p.publish)
	if err != nil {
		return res, fmt.Errorf("failed to drain offline queue: %w", err)
	}
	if res.Processed > 0 || res.Failed > 0 {
		p.logger.Info("offline queue flushed", zap.Int("processed", res.Processed), zap.Int("failed", res.Failed))
	}
	return res, nil
}

func (p *SyncPublisher) publish(ctx context.Context, action offline.Action) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(action.ID),
		Value: action.Payload,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(action.Action)},
			{Key: "timestamp", Value: []byte(strconv.FormatInt(action.Timestamp, 10))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

func (p *SyncPublisher) Close() error {
	return p.writer.Close()
}

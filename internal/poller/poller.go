// Package poller listens for catalog change events and reloads the catalog.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	CatalogTopic         = "catalog-events"
	CatalogGroup         = "tienda-catalog"
	EventProductsUpdated = "products_updated"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Reloader refreshes the in-memory catalog.
type Reloader interface {
	Load(ctx context.Context) error
}

type catalogEvent struct {
	Event string `json:"event"`
}

type Poller struct {
	reader     MessageReader
	catalog    Reloader
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewPoller(catalog Reloader, logger *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    CatalogTopic,
		GroupID:  CatalogGroup,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(reader, catalog, logger)
}

func newPoller(reader MessageReader, catalog Reloader, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{reader: reader, catalog: catalog, retryDelay: time.Second, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.handleNext(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("error reading catalog event", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

// handleNext returns an error only when reading from the topic fails.
func (p *Poller) handleNext(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	var ev catalogEvent
	if errUnmarshal := json.Unmarshal(m.Value, &ev); errUnmarshal != nil {
		p.logger.Warn("error parsing catalog event", zap.Int64("offset", m.Offset), zap.Error(errUnmarshal))
		return nil
	}
	if ev.Event != EventProductsUpdated {
		p.logger.Debug("ignoring catalog event", zap.String("event", ev.Event))
		return nil
	}

	if errLoad := p.catalog.Load(ctx); errLoad != nil && !errors.Is(errLoad, context.Canceled) {
		p.logger.Error("catalog reload failed", zap.Error(errLoad))
	}
	return nil
}

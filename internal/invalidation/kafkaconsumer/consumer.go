// Package kafkaconsumer drops stale cache entries when parking update events
// arrive on the broker, so the next read refetches instead of waiting out
// the TTL.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/judev34/parking-montpellier-app/internal/invalidation"
	"github.com/judev34/parking-montpellier-app/internal/observability"
)

// CacheDropper removes cached open-data responses by entity or wholesale.
type CacheDropper interface {
	InvalidateEntity(ctx context.Context, id string) error
	InvalidateCatalog(ctx context.Context) error
}

// Refresher is nudged after a successful invalidation so the catalog state
// picks up the fresh data without waiting for the next timer tick.
type Refresher interface {
	RefreshCatalog(ctx context.Context)
}

type Consumer struct {
	cfg       Config
	logger    *slog.Logger
	cache     CacheDropper
	refresher Refresher
}

func New(cfg Config, logger *slog.Logger, cache CacheDropper, refresher Refresher) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:       cfg,
		logger:    logger,
		cache:     cache,
		refresher: refresher,
	}
}

// Start joins the consumer group and processes update events until ctx is
// cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache dropper")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err, "topic", c.cfg.Topic)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single update event message. Undecodable or invalid
// events are dropped rather than retried; a failing cache delete is returned
// so the offset stays unmarked and the message is retried.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncInvalidation("decode_error")
		c.logger.Error("undecodable update event, dropping",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		observability.IncInvalidation("invalid")
		c.logger.Warn("invalid update event, dropping",
			"op", ev.Op, "entity", ev.EntityID, "err", err)
		return nil
	}

	var err error
	switch ev.Op {
	case "reload":
		err = c.cache.InvalidateCatalog(ctx)
	default:
		err = c.cache.InvalidateEntity(ctx, ev.EntityID)
	}
	if err != nil {
		observability.IncInvalidation("error")
		c.logger.Error("cache invalidation failed",
			"op", ev.Op, "entity", ev.EntityID, "err", err)
		return fmt.Errorf("invalidate (op=%s): %w", ev.Op, err)
	}

	if c.refresher != nil {
		c.refresher.RefreshCatalog(ctx)
	}

	observability.IncInvalidation("ok")
	c.logger.Debug("cache invalidated", "op", ev.Op, "entity", ev.EntityID, "source", ev.Source)
	return nil
}

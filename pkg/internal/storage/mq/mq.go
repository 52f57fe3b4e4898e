// Package mq wraps watermill publishers and subscribers behind one Client.
// Backends register factories from their own files: an in-process go channel
// bus, NATS (optionally JetStream) and redis pub/sub.
//
//	client, err := mq.New(ctx, &cfg.MQ)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	msgs, err := client.Subscribe(ctx, queue.TopicDownloadRecorded)
package mq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	wmetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/sharevault/pkg/configs"
	nlog "github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
)

// ErrDisabled is returned when the bus is configured as "none".
var ErrDisabled = errors.New("mq disabled")

// Factory builds a publisher and subscriber pair.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory registers the factory for an MQ type.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes lists the compiled-in backends.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client bundles the publisher and subscriber of one backend.
type Client struct {
	kind       configs.MQType
	publisher  message.Publisher
	subscriber message.Subscriber
	closeOnce  sync.Once
}

// Type reports the backend in use.
func (c *Client) Type() configs.MQType {
	return c.kind
}

// Publisher exposes the raw publisher for typed helpers in pkg/queue.
func (c *Client) Publisher() message.Publisher {
	if c == nil {
		return nil
	}

	return c.publisher
}

// Publish sends msgs to topic.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe returns the message stream of topic; it closes when ctx ends.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Close closes both sides once.
func (c *Client) Close() error {
	var err error

	c.closeOnce.Do(func() {
		if c.publisher != nil {
			err = errors.Join(err, c.publisher.Close())
		}

		// the go channel backend hands back the same value for both sides
		if c.subscriber != nil && any(c.subscriber) != any(c.publisher) {
			err = errors.Join(err, c.subscriber.Close())
		}
	})

	return err
}

// New builds the backend named by cfg.Type. MQTypeNone yields ErrDisabled.
func New(ctx context.Context, cfg *configs.MQConfig) (*Client, error) {
	if cfg.Type == configs.MQTypeNone {
		return nil, ErrDisabled
	}

	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLoggerAdapter(nlog.Logger())

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	if cfg.Common.EnableMetrics && configs.GetConfig().Metrics.Enabled {
		builder := wmetrics.NewPrometheusMetricsBuilder(metrics.GetRegistry(), configs.AppName, "mq")

		if pub, err = builder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = builder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("mq ready")

	return &Client{kind: cfg.Type, publisher: pub, subscriber: sub}, nil
}

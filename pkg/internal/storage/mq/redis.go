package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/sharevault/pkg/configs"
)

// DefaultChannelBufferSize is the buffer of each redis subscription channel.
const DefaultChannelBufferSize = 100

var errSubscriberClosed = errors.New("redis subscriber closed")

// redisFrame carries the watermill uuid and metadata across redis pub/sub,
// which only transports a flat payload.
type redisFrame struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher publishes framed messages with PUBLISH.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber fans redis pub/sub channels out to watermill channels.
// Delivery is at most once: redis does not redeliver nacked messages.
type RedisSubscriber struct {
	client  *redis.Client
	logger  watermill.LoggerAdapter
	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

func newRedisClient(cfg *configs.MQConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Common.ConnPoolSize,
	})
}

func redisFactory(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	pubClient := newRedisClient(cfg)
	if err := pubClient.Ping(ctx).Err(); err != nil {
		_ = pubClient.Close()
		return nil, nil, err
	}

	pub := &RedisPublisher{client: pubClient}
	sub := &RedisSubscriber{
		client:  newRedisClient(cfg),
		logger:  logger,
		closeCh: make(chan struct{}),
	}

	return pub, sub, nil
}

// Publish implements message.Publisher.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(redisFrame{UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return err
		}

		ctx := msg.Context()
		if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close implements message.Publisher.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Subscribe implements message.Subscriber.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errSubscriberClosed
	}

	ps := s.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s.subs = append(s.subs, ps)

	out := make(chan *message.Message, DefaultChannelBufferSize)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}

				msg, err := decodeFrame(raw.Payload)
				if err != nil {
					s.logger.Error("drop undecodable redis message", err, watermill.LogFields{"topic": topic})
					continue
				}

				msg.SetContext(ctx)

				select {
				case out <- msg:
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}

				// wait for the handler so messages stay ordered per subscription
				select {
				case <-msg.Acked():
				case <-msg.Nacked():
					s.logger.Info("redis message nacked, not redelivered", watermill.LogFields{"uuid": msg.UUID})
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func decodeFrame(payload string) (*message.Message, error) {
	var frame redisFrame
	if err := sonic.UnmarshalString(payload, &frame); err != nil {
		return nil, err
	}

	if frame.UUID == "" {
		frame.UUID = watermill.NewUUID()
	}

	msg := message.NewMessage(frame.UUID, frame.Payload)
	for k, v := range frame.Metadata {
		msg.Metadata.Set(k, v)
	}

	return msg, nil
}

// Close implements message.Subscriber.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	close(s.closeCh)

	var err error
	for _, ps := range s.subs {
		err = errors.Join(err, ps.Close())
	}

	s.mu.Unlock()
	s.wg.Wait()

	return errors.Join(err, s.client.Close())
}

package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/sharevault/pkg/configs"
)

// DefaultMemoryBuffer is the per-subscriber buffer of the in-process bus.
const DefaultMemoryBuffer = 1024

func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory serves single-node deployments: analytics are delivered to the
// in-process consumer without a broker.
func memoryFactory(_ context.Context, _ *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: DefaultMemoryBuffer,
	}, logger)

	return bus, bus, nil
}

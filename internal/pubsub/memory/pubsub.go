package memory

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/pubsub"
)

// outputBuffer is the per-subscriber backlog before Publish starts to block
const outputBuffer = 100

// PubSub is an in-process transport. Events published before the delivery
// router subscribes are replayed to it; nothing survives a restart.
type PubSub struct {
	channel *gochannel.GoChannel
	logger  *logger.Logger
}

func NewPubSub(cfg *config.Configuration, logger *logger.Logger) pubsub.PubSub {
	return &PubSub{
		channel: gochannel.NewGoChannel(
			gochannel.Config{
				Persistent:                     true,
				BlockPublishUntilSubscriberAck: false,
				OutputChannelBuffer:            outputBuffer,
			},
			logger.Watermill(),
		),
		logger: logger,
	}
}

// Publish keeps ctx on the message so that request ids reach the handler
func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.channel.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.channel.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	return p.channel.Close()
}

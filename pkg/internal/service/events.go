package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/sharevault/pkg/configs"
	nlog "github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/queue"
)

// eventBus publishes domain events when a bus is configured and the topic is switched on.
// Publication never fails the operation that produced the event.
type eventBus struct {
	pub message.Publisher
	cfg configs.EventsConfig
}

func newEventBus(pub message.Publisher, cfg configs.EventsConfig) *eventBus {
	return &eventBus{pub: pub, cfg: cfg}
}

func (b *eventBus) enabled(flag bool) bool {
	return b != nil && b.pub != nil && b.cfg.Enabled && flag
}

func (b *eventBus) analyticsDownload() bool { return b.enabled(b.cfg.Analytics.Download) }

func (b *eventBus) analyticsVisit() bool { return b.enabled(b.cfg.Analytics.Visit) }

// headers stamps the producer and, when ctx carries a span, its trace id.
func headers(ctx context.Context) []func(*queue.EventHeader) {
	opts := []func(*queue.EventHeader){queue.WithProducer(configs.AppName)}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, queue.WithTraceID(sc.TraceID().String()))
	}

	return opts
}

func (b *eventBus) uploadCommitted(ctx context.Context, p queue.UploadCommittedPayload) {
	if !b.enabled(b.cfg.Upload.Committed) {
		return
	}

	if err := queue.PublishUploadCommitted(b.pub, p, headers(ctx)...); err != nil {
		nlog.Logger().Warn().Err(err).Str("share_id", p.ShareID).Msg("publish upload committed")
	}
}

func (b *eventBus) uploadReleased(ctx context.Context, p queue.UploadReleasedPayload) {
	if !b.enabled(b.cfg.Upload.Released) {
		return
	}

	if err := queue.PublishUploadReleased(b.pub, p, headers(ctx)...); err != nil {
		nlog.Logger().Warn().Err(err).Str("share_id", p.ShareID).Msg("publish upload released")
	}
}

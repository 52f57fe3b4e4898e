package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/internal/model"
	nlog "github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/queue"
)

// AnalyticsRecorder records downloads and visits without ever failing the
// request that produced them. Events go to the bus when one is configured;
// otherwise rows are written in the background.
type AnalyticsRecorder struct {
	db     *gorm.DB
	events *eventBus
	geo    GeoLocator
	now    func() time.Time
	wg     sync.WaitGroup
}

func NewAnalyticsRecorder(gdb *gorm.DB, events *eventBus, geo GeoLocator, now func() time.Time) *AnalyticsRecorder {
	return &AnalyticsRecorder{db: gdb, events: events, geo: geo, now: now}
}

// RecordDownload is fire-and-forget.
func (r *AnalyticsRecorder) RecordDownload(ctx context.Context, p queue.DownloadRecordedPayload) {
	if r.events.analyticsDownload() {
		err := queue.PublishDownloadRecorded(r.events.pub, p, headers(ctx)...)
		if err == nil {
			return
		}

		nlog.Logger().Warn().Err(err).Msg("publish download analytics, writing directly")
	}

	r.background(ctx, func(ctx context.Context) error { return r.PersistDownload(ctx, p) })
}

// RecordVisit is fire-and-forget.
func (r *AnalyticsRecorder) RecordVisit(ctx context.Context, p queue.VisitRecordedPayload) {
	if r.events.analyticsVisit() {
		err := queue.PublishVisitRecorded(r.events.pub, p, headers(ctx)...)
		if err == nil {
			return
		}

		nlog.Logger().Warn().Err(err).Msg("publish visit analytics, writing directly")
	}

	r.background(ctx, func(ctx context.Context) error { return r.PersistVisit(ctx, p) })
}

func (r *AnalyticsRecorder) background(ctx context.Context, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		if err := fn(ctx); err != nil {
			nlog.Logger().Warn().Err(err).Msg("analytics row dropped")
		}
	}()
}

// Wait blocks until background writes finished.
func (r *AnalyticsRecorder) Wait() {
	r.wg.Wait()
}

// PersistDownload enriches and stores one download row.
func (r *AnalyticsRecorder) PersistDownload(ctx context.Context, p queue.DownloadRecordedPayload) error {
	row := model.DownloadAnalytics{
		ShareID:   p.ShareID,
		Timestamp: p.Timestamp.UTC(),
		IPAddress: p.Requester.IPAddress,
		UserAgent: p.Requester.UserAgent,
	}

	if p.FileID != "" {
		id := p.FileID
		row.FileID = &id
	}

	row.Country, row.City = r.locate(ctx, p.Requester.IPAddress)

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert download analytics: %w", err)
	}

	return nil
}

// PersistVisit enriches and stores one visit row.
func (r *AnalyticsRecorder) PersistVisit(ctx context.Context, p queue.VisitRecordedPayload) error {
	row := model.VisitAnalytics{
		ShareID:   p.ShareID,
		Timestamp: p.Timestamp.UTC(),
		IPAddress: p.Requester.IPAddress,
		UserAgent: p.Requester.UserAgent,
		Referrer:  p.Requester.Referrer,
	}

	row.Country, row.City = r.locate(ctx, p.Requester.IPAddress)

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert visit analytics: %w", err)
	}

	return nil
}

// locate is best effort: any failure leaves country and city empty.
func (r *AnalyticsRecorder) locate(ctx context.Context, ip string) (*string, *string) {
	if r.geo == nil || ip == "" {
		return nil, nil
	}

	loc, err := r.geo.Locate(ctx, ip)
	if err != nil {
		nlog.Logger().Debug().Err(err).Str("ip", ip).Msg("geo lookup failed")
		return nil, nil
	}

	if loc == nil {
		return nil, nil
	}

	return nonEmpty(loc.Country), nonEmpty(loc.City)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// Subscriber is the consuming side of the bus.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// ConsumeAnalytics persists analytics events until ctx ends. Undecodable
// messages are acked and dropped; failed inserts are nacked for redelivery.
func (r *AnalyticsRecorder) ConsumeAnalytics(ctx context.Context, sub Subscriber) error {
	downloads, err := sub.Subscribe(ctx, queue.TopicDownloadRecorded)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", queue.TopicDownloadRecorded, err)
	}

	visits, err := sub.Subscribe(ctx, queue.TopicVisitRecorded)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", queue.TopicVisitRecorded, err)
	}

	l := nlog.Logger()
	l.Info().Msg("analytics consumer started")

	for downloads != nil || visits != nil {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-downloads:
			if !ok {
				downloads = nil
				continue
			}

			r.handle(ctx, msg, func(ctx context.Context) error {
				env, err := queue.ParseDownloadRecorded(msg)
				if err != nil {
					return errPoison{err}
				}

				return r.PersistDownload(ctx, env.Payload)
			})
		case msg, ok := <-visits:
			if !ok {
				visits = nil
				continue
			}

			r.handle(ctx, msg, func(ctx context.Context) error {
				env, err := queue.ParseVisitRecorded(msg)
				if err != nil {
					return errPoison{err}
				}

				return r.PersistVisit(ctx, env.Payload)
			})
		}
	}

	return nil
}

type errPoison struct{ error }

func (r *AnalyticsRecorder) handle(ctx context.Context, msg *message.Message, fn func(context.Context) error) {
	err := fn(ctx)

	var poison errPoison

	switch {
	case err == nil:
		msg.Ack()
	case errors.As(err, &poison):
		nlog.Logger().Warn().Err(err).Str("uuid", msg.UUID).Msg("drop undecodable analytics event")
		msg.Ack()
	default:
		nlog.Logger().Warn().Err(err).Str("uuid", msg.UUID).Msg("analytics event not stored")
		msg.Nack()
	}
}

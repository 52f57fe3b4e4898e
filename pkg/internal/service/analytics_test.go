package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/testkit"
	"github.com/yeisme/sharevault/pkg/queue"
)

type stubGeo struct {
	loc *service.Location
	err error
}

func (s stubGeo) Locate(context.Context, string) (*service.Location, error) { return s.loc, s.err }

func TestAnalyticsWithoutBusWritesDirectly(t *testing.T) {
	env := testkit.New(t, func(d *service.Deps) {
		d.Geo = stubGeo{loc: &service.Location{Country: "NL", City: "Utrecht"}}
	})

	env.Analytics.RecordVisit(context.Background(), queue.VisitRecordedPayload{
		ShareID:   "01HSHARE",
		Timestamp: env.Clock.Now(),
		Requester: queue.Requester{IPAddress: "203.0.113.9", UserAgent: "curl"},
	})
	env.Analytics.Wait()

	var row model.VisitAnalytics
	require.NoError(t, env.DB.Take(&row, "share_id = ?", "01HSHARE").Error)
	require.NotNil(t, row.Country)
	assert.Equal(t, "NL", *row.Country)
	assert.Equal(t, "Utrecht", *row.City)
}

func TestAnalyticsGeoFailureLeavesLocationEmpty(t *testing.T) {
	env := testkit.New(t, func(d *service.Deps) {
		d.Geo = stubGeo{err: context.DeadlineExceeded}
	})

	err := env.Analytics.PersistDownload(context.Background(), queue.DownloadRecordedPayload{
		ShareID:   "01HSHARE",
		Timestamp: env.Clock.Now(),
		Requester: queue.Requester{IPAddress: "203.0.113.9"},
	})
	require.NoError(t, err)

	var row model.DownloadAnalytics
	require.NoError(t, env.DB.Take(&row, "share_id = ?", "01HSHARE").Error)
	assert.Nil(t, row.Country)
	assert.Nil(t, row.City)
	assert.Nil(t, row.FileID)
}

func TestAnalyticsThroughTheBus(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	env := testkit.New(t, func(d *service.Deps) {
		d.Publisher = bus
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- env.Analytics.ConsumeAnalytics(ctx, bus) }()

	env.Analytics.RecordDownload(ctx, queue.DownloadRecordedPayload{
		ShareID:   "01HBUS",
		FileID:    "file-1",
		Timestamp: env.Clock.Now(),
	})
	env.Analytics.RecordVisit(ctx, queue.VisitRecordedPayload{ShareID: "01HBUS", Timestamp: env.Clock.Now()})

	// undecodable events are dropped without blocking the rest
	require.NoError(t, bus.Publish(queue.TopicVisitRecorded, message.NewMessage(watermill.NewUUID(), []byte("garbage"))))
	env.Analytics.RecordVisit(ctx, queue.VisitRecordedPayload{ShareID: "01HBUS", Timestamp: env.Clock.Now()})

	count := func(m any) int64 {
		var n int64
		_ = env.DB.Model(m).Where("share_id = ?", "01HBUS").Count(&n).Error

		return n
	}

	require.Eventually(t, func() bool {
		return count(&model.DownloadAnalytics{}) == 1 && count(&model.VisitAnalytics{}) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

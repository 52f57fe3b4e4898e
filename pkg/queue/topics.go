package queue

// Topics follow sv.<domain>.<action> and stay stable once published.
const (
	// TopicDownloadRecorded carries one granted download for analytics.
	TopicDownloadRecorded = "sv.analytics.download"
	// TopicVisitRecorded carries one share page visit for analytics.
	TopicVisitRecorded = "sv.analytics.visit"

	// TopicUploadCommitted fires after files and counters are committed.
	TopicUploadCommitted = "sv.upload.committed"
	// TopicUploadReleased fires after a failed upload gave its reservation back.
	TopicUploadReleased = "sv.upload.released"
)

// Topics lists every topic, for `sharevault mq ls`.
func Topics() []string {
	return []string{
		TopicDownloadRecorded,
		TopicVisitRecorded,
		TopicUploadCommitted,
		TopicUploadReleased,
	}
}

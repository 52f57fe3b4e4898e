package queue

import "github.com/ThreeDotsLabs/watermill/message"

// Publish wraps payload in an envelope and publishes it on topic.
func Publish[T any](pub message.Publisher, topic string, payload T, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}

func PublishDownloadRecorded(pub message.Publisher, payload DownloadRecordedPayload, opts ...func(*EventHeader)) error {
	return Publish(pub, TopicDownloadRecorded, payload, opts...)
}

func PublishVisitRecorded(pub message.Publisher, payload VisitRecordedPayload, opts ...func(*EventHeader)) error {
	return Publish(pub, TopicVisitRecorded, payload, opts...)
}

func PublishUploadCommitted(pub message.Publisher, payload UploadCommittedPayload, opts ...func(*EventHeader)) error {
	return Publish(pub, TopicUploadCommitted, payload, opts...)
}

func PublishUploadReleased(pub message.Publisher, payload UploadReleasedPayload, opts ...func(*EventHeader)) error {
	return Publish(pub, TopicUploadReleased, payload, opts...)
}

// ParseDownloadRecorded decodes a TopicDownloadRecorded message.
func ParseDownloadRecorded(msg *message.Message) (Message[DownloadRecordedPayload], error) {
	return ParseWatermillMessage[DownloadRecordedPayload](msg)
}

// ParseVisitRecorded decodes a TopicVisitRecorded message.
func ParseVisitRecorded(msg *message.Message) (Message[VisitRecordedPayload], error) {
	return ParseWatermillMessage[VisitRecordedPayload](msg)
}

package queue

import "time"

// EventHeader is common metadata of every event.
type EventHeader struct {
	// Topic repeats the subject so dumped messages can be traced back.
	Topic      string    `json:"topic"`
	TraceID    string    `json:"trace_id,omitempty"`
	Producer   string    `json:"producer,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version,omitempty"`
}

// Message is the envelope of every event: Header plus a topic specific Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// Requester describes the client behind an analytics event.
type Requester struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
}

// DownloadRecordedPayload is published for every granted download.
type DownloadRecordedPayload struct {
	ShareID   string    `json:"share_id"`
	FileID    string    `json:"file_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Requester Requester `json:"requester"`
}

// VisitRecordedPayload is published for every allowed share visit.
type VisitRecordedPayload struct {
	ShareID   string    `json:"share_id"`
	Timestamp time.Time `json:"timestamp"`
	Requester Requester `json:"requester"`
}

// UploadFile summarizes one stored file of a committed upload.
type UploadFile struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
}

// UploadCommittedPayload is published after an upload committed.
type UploadCommittedPayload struct {
	ShareID       string       `json:"share_id"`
	UserID        string       `json:"user_id"`
	ReservationID string       `json:"reservation_id"`
	ChargedMB     int64        `json:"charged_mb"`
	Files         []UploadFile `json:"files"`
}

// UploadReleasedPayload is published after a failed upload released its hold.
type UploadReleasedPayload struct {
	ShareID       string `json:"share_id"`
	UserID        string `json:"user_id"`
	ReservationID string `json:"reservation_id"`
	ReleasedMB    int64  `json:"released_mb"`
	Reason        string `json:"reason"`
}

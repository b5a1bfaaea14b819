package archive

import "time"

// Request identifies one attachment to copy into the bucket.
type Request struct {
	// ConversationID is the raw sender address; only its hash reaches S3.
	ConversationID string
	MessageSID     string
	URL            string
	ContentType    string
	ReceivedAt     time.Time
}

// ManifestEntry is one object under the monthly media manifest prefix.
type ManifestEntry struct {
	ConversationHash string `json:"conversation_hash"`
	MessageSID       string `json:"message_sid"`
	S3Key            string `json:"s3_key"`
	ContentType      string `json:"content_type"`
	Size             int64  `json:"size"`
	ArchivedAt       string `json:"archived_at"`
}

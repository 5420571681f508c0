package models

import "time"

// Attachment is a descriptor referencing an externally stored file. The
// bytes themselves live in blob storage; only the returned path is kept.
type Attachment struct {
	Filename string `bson:"filename" json:"filename"`
	Path     string `bson:"path" json:"path"`
	MimeType string `bson:"mime_type" json:"mime_type"`
	Size     int64  `bson:"size" json:"size"`
}

// Message belongs to exactly one conversation. CreatedAt is immutable and,
// together with ID as tie-breaker, totally orders messages within a
// conversation.
type Message struct {
	ID             string       `bson:"_id" json:"id"`
	ConversationID string       `bson:"conversation_id" json:"conversation_id"`
	SenderID       string       `bson:"sender_id" json:"sender_id"`
	Content        string       `bson:"content" json:"content"`
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
}

package models

import "time"

// Unread-count sources known to the aggregator. SourceConversations is
// served locally; SourceMail belongs to the internal-mail subsystem.
const (
	SourceConversations = "conversations"
	SourceMail          = "mail"
)

// Watermark records, per (user, source), the timestamp of the last message
// the user is considered to have read. It only ever moves forward.
type Watermark struct {
	UserID     string    `bson:"user_id" json:"user_id"`
	Source     string    `bson:"source" json:"source"`
	LastReadAt time.Time `bson:"last_read_at" json:"last_read_at"`
}

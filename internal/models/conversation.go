package models

import "time"

// Conversation is an ordered channel between a fixed set of participants.
// LastMessageAt is advanced only by message creation.
type Conversation struct {
	ID            string     `bson:"_id" json:"id"`
	Members       []string   `bson:"members" json:"members"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	LastMessageAt time.Time  `bson:"last_message_at" json:"last_message_at"`
	DeletedAt     *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/harborview-properties/messaging-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// ConversationStore owns conversation metadata and message ordering.
type ConversationStore interface {
	// CreateConversation creates a conversation for the member set or
	// returns the existing one (member order is irrelevant). ts is the
	// creation instant supplied by the caller's clock.
	CreateConversation(ctx context.Context, members []string, ts time.Time) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// TouchLastActivity advances last_message_at; it never moves backwards.
	TouchLastActivity(ctx context.Context, id string, ts time.Time) error
	SoftDeleteConversation(ctx context.Context, id string, ts time.Time) error
	// MemberConversationIDs lists live conversations the user participates in.
	MemberConversationIDs(ctx context.Context, userID string) ([]string, error)
}

// MessageStore persists individual messages belonging to a conversation.
type MessageStore interface {
	InsertMessage(ctx context.Context, m *models.Message) error
	// ListMessages returns up to limit messages in ascending
	// (created_at, id) order, strictly after the cursor position.
	ListMessages(ctx context.Context, conversationID string, after Cursor, limit int64) ([]*models.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	AppendAttachments(ctx context.Context, messageID string, atts []models.Attachment) (*models.Message, error)
	// CountUnreadSince counts messages across the given conversations with
	// created_at after since and a sender other than userID.
	CountUnreadSince(ctx context.Context, conversationIDs []string, userID string, since time.Time) (int64, error)
}

// WatermarkStore keeps the per-(user, source) last-read timestamps.
type WatermarkStore interface {
	// Advance moves the watermark forward; calls with an equal or earlier
	// timestamp are no-ops.
	Advance(ctx context.Context, userID, source string, ts time.Time) error
	Get(ctx context.Context, userID, source string) (time.Time, error)
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborview-properties/messaging-service/internal/apperr"
	"github.com/harborview-properties/messaging-service/internal/attachments"
	"github.com/harborview-properties/messaging-service/internal/metrics"
	"github.com/harborview-properties/messaging-service/internal/models"
	"github.com/harborview-properties/messaging-service/internal/repository"
)

// EventPublisher is the outbound event hook; nil disables publishing.
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, m *models.Message) error
}

// MessageService owns conversation and message semantics: validation,
// ordering, last-activity bookkeeping and the watermark entry point.
type MessageService struct {
	convs  repository.ConversationStore
	msgs   repository.MessageStore
	marks  repository.WatermarkStore
	policy *attachments.Policy
	pub    EventPublisher
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewMessageService(
	convs repository.ConversationStore,
	msgs repository.MessageStore,
	marks repository.WatermarkStore,
	policy *attachments.Policy,
	pub EventPublisher,
	log *zap.SugaredLogger,
) *MessageService {
	return &MessageService{
		convs:  convs,
		msgs:   msgs,
		marks:  marks,
		policy: policy,
		pub:    pub,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MessageService) CreateConversation(ctx context.Context, members []string) (*models.Conversation, error) {
	members = repository.NormalizeMembers(members)
	if len(members) < 2 {
		return nil, &apperr.ValidationError{Field: "members", Message: "at least two distinct participants required"}
	}
	c, err := s.convs.CreateConversation(ctx, members, s.now())
	if err != nil {
		return nil, apperr.Unavailable("create conversation", err)
	}
	return c, nil
}

func (s *MessageService) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	c, err := s.convs.GetConversation(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &apperr.ValidationError{Field: "conversation_id", Message: "unknown conversation"}
	}
	if err != nil {
		return nil, apperr.Unavailable("get conversation", err)
	}
	return c, nil
}

// ConversationDetail returns the conversation together with its most
// recent message, nil when nothing has been sent yet.
func (s *MessageService) ConversationDetail(ctx context.Context, id string) (*models.Conversation, *models.Message, error) {
	c, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	last, err := s.msgs.LastMessage(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return c, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Unavailable("last message", err)
	}
	return c, last, nil
}

func (s *MessageService) DeleteConversation(ctx context.Context, id string) error {
	err := s.convs.SoftDeleteConversation(ctx, id, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return &apperr.ValidationError{Field: "conversation_id", Message: "unknown conversation"}
	}
	if err != nil {
		return apperr.Unavailable("delete conversation", err)
	}
	return nil
}

// CreateMessage appends one message to the conversation's order and
// advances its last-activity marker. It never touches unread watermarks.
// Invalid attachment descriptors are rejected individually unless
// allOrNothing is set, in which case the whole call fails.
func (s *MessageService) CreateMessage(
	ctx context.Context,
	conversationID, senderID, content string,
	atts []models.Attachment,
	allOrNothing bool,
) (*models.Message, []*apperr.AttachmentRejected, error) {
	if content == "" {
		return nil, nil, &apperr.ValidationError{Field: "content", Message: "must not be empty"}
	}
	conv, err := s.convs.GetConversation(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, &apperr.ValidationError{Field: "conversation_id", Message: "unknown conversation"}
	}
	if err != nil {
		return nil, nil, apperr.Unavailable("get conversation", err)
	}
	if !conv.HasMember(senderID) {
		return nil, nil, &apperr.ValidationError{Field: "sender_id", Message: "not a participant"}
	}

	accepted, rejected := s.policy.CheckAll(atts, allOrNothing)
	if len(rejected) > 0 {
		metrics.AttachmentsRejected.Add(float64(len(rejected)))
		if allOrNothing {
			return nil, rejected, rejected[0]
		}
		for _, rej := range rejected {
			s.log.Warnw("attachment rejected", "filename", rej.Filename, "rule", rej.Rule)
		}
	}

	m := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    accepted,
		CreatedAt:      s.now(),
	}
	if err := s.msgs.InsertMessage(ctx, m); err != nil {
		return nil, rejected, apperr.Unavailable("insert message", err)
	}
	if err := s.convs.TouchLastActivity(ctx, conversationID, m.CreatedAt); err != nil {
		s.log.Errorw("touch last activity", "conversation_id", conversationID, "err", err)
	}
	metrics.MessagesCreated.Inc()

	if s.pub != nil {
		if err := s.pub.PublishMessageCreated(ctx, m); err != nil {
			s.log.Warnw("publish message.created", "message_id", m.ID, "err", err)
		}
	}
	return m, rejected, nil
}

// AttachFiles associates additional descriptors with an existing message,
// applying the same acceptance policy as creation.
func (s *MessageService) AttachFiles(
	ctx context.Context,
	messageID string,
	atts []models.Attachment,
	allOrNothing bool,
) (*models.Message, []*apperr.AttachmentRejected, error) {
	accepted, rejected := s.policy.CheckAll(atts, allOrNothing)
	if len(rejected) > 0 {
		metrics.AttachmentsRejected.Add(float64(len(rejected)))
		if allOrNothing {
			return nil, rejected, rejected[0]
		}
	}
	m, err := s.msgs.AppendAttachments(ctx, messageID, accepted)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, rejected, &apperr.ValidationError{Field: "message_id", Message: "unknown message"}
	}
	if err != nil {
		return nil, rejected, apperr.Unavailable("append attachments", err)
	}
	return m, rejected, nil
}

// ListMessages pages through a conversation in ascending timestamp order.
// The returned cursor restarts the walk after the last message of the page.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, cursorToken string, limit int64) ([]*models.Message, string, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cursor, err := repository.DecodeCursor(cursorToken)
	if err != nil {
		return nil, "", &apperr.ValidationError{Field: "cursor", Message: err.Error()}
	}
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, "", err
	}
	msgs, err := s.msgs.ListMessages(ctx, conversationID, cursor, limit)
	if err != nil {
		return nil, "", apperr.Unavailable("list messages", err)
	}
	next := ""
	if int64(len(msgs)) == limit {
		last := msgs[len(msgs)-1]
		next = repository.Cursor{After: last.CreatedAt, AfterID: last.ID}.Encode()
	}
	return msgs, next, nil
}

// CountUnread serves the conversations unread source: across every live
// conversation the user participates in, messages newer than the user's
// watermark and sent by someone else.
func (s *MessageService) CountUnread(ctx context.Context, userID string) (int64, error) {
	since, err := s.marks.Get(ctx, userID, models.SourceConversations)
	if err != nil {
		return 0, err
	}
	ids, err := s.convs.MemberConversationIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.msgs.CountUnreadSince(ctx, ids, userID, since)
}

// MarkRead advances the (user, source) watermark. Earlier or equal
// timestamps are no-ops, so repeated calls are idempotent.
func (s *MessageService) MarkRead(ctx context.Context, userID, source string, ts time.Time) error {
	if source != models.SourceConversations && source != models.SourceMail {
		return &apperr.ValidationError{Field: "source", Message: "unknown source"}
	}
	if ts.IsZero() {
		return &apperr.ValidationError{Field: "timestamp", Message: "must not be zero"}
	}
	if err := s.marks.Advance(ctx, userID, source, ts); err != nil {
		return apperr.Unavailable("advance watermark", err)
	}
	return nil
}

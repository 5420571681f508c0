package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harborview-properties/messaging-service/internal/apperr"
	"github.com/harborview-properties/messaging-service/internal/attachments"
	"github.com/harborview-properties/messaging-service/internal/models"
	"github.com/harborview-properties/messaging-service/internal/repository"
)

func newTestService(t *testing.T) (*MessageService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	policy := attachments.NewPolicy(5<<20, []string{"image/png", "application/pdf"})
	svc := NewMessageService(store, store, store, policy, nil, zap.NewNop().Sugar())
	// deterministic, strictly increasing clock
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick time.Duration
	svc.now = func() time.Time {
		tick += time.Second
		return base.Add(tick)
	}
	return svc, store
}

func TestCreateMessageAppendsAndAdvancesLastActivity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	msg, rejected, err := svc.CreateMessage(ctx, conv.ID, "bob", "viewing at 3pm?", nil, false)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.NotEmpty(t, msg.ID)

	got, err := svc.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.LastMessageAt.Equal(msg.CreatedAt))
	// creation stamps come from the service clock, not the store's
	assert.True(t, got.CreatedAt.Before(msg.CreatedAt))
}

func TestCreateConversationRequiresDistinctMembers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ve *apperr.ValidationError
	_, err := svc.CreateConversation(ctx, []string{"alice", "alice"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "members", ve.Field)

	_, err = svc.CreateConversation(ctx, []string{"alice"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "members", ve.Field)
}

func TestConversationDetail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	got, last, err := svc.ConversationDetail(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Nil(t, last)

	_, _, err = svc.CreateMessage(ctx, conv.ID, "bob", "first", nil, false)
	require.NoError(t, err)
	newest, _, err := svc.CreateMessage(ctx, conv.ID, "alice", "second", nil, false)
	require.NoError(t, err)

	_, last, err = svc.ConversationDetail(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, newest.ID, last.ID)
	assert.Equal(t, "second", last.Content)

	var ve *apperr.ValidationError
	_, _, err = svc.ConversationDetail(ctx, "no-such-conversation")
	require.ErrorAs(t, err, &ve)
}

func TestCreateMessageValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	var ve *apperr.ValidationError

	_, _, err = svc.CreateMessage(ctx, conv.ID, "bob", "", nil, false)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "content", ve.Field)

	_, _, err = svc.CreateMessage(ctx, "no-such-conversation", "bob", "hi", nil, false)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "conversation_id", ve.Field)

	_, _, err = svc.CreateMessage(ctx, conv.ID, "mallory", "hi", nil, false)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "sender_id", ve.Field)
}

func TestCreateMessagePartialAttachmentAcceptance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	valid := models.Attachment{Filename: "photo.png", Path: "u/photo.png", MimeType: "image/png", Size: 2 << 20}
	oversize := models.Attachment{Filename: "scan.pdf", Path: "u/scan.pdf", MimeType: "application/pdf", Size: 10 << 20}

	msg, rejected, err := svc.CreateMessage(ctx, conv.ID, "bob", "see attached", []models.Attachment{valid, oversize}, false)
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "photo.png", msg.Attachments[0].Filename)
	require.Len(t, rejected, 1)
	assert.Equal(t, attachments.RuleTooLarge, rejected[0].Rule)
}

func TestCreateMessageAllOrNothing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	valid := models.Attachment{Filename: "photo.png", Path: "u/photo.png", MimeType: "image/png", Size: 1024}
	oversize := models.Attachment{Filename: "scan.pdf", Path: "u/scan.pdf", MimeType: "application/pdf", Size: 10 << 20}

	_, rejected, err := svc.CreateMessage(ctx, conv.ID, "bob", "see attached", []models.Attachment{valid, oversize}, true)
	require.Error(t, err)
	var ar *apperr.AttachmentRejected
	require.ErrorAs(t, err, &ar)
	require.Len(t, rejected, 1)

	// nothing persisted
	msgs, listErr := store.ListMessages(ctx, conv.ID, repository.Cursor{}, 10)
	require.NoError(t, listErr)
	assert.Empty(t, msgs)
}

func TestAttachFiles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	msg, _, err := svc.CreateMessage(ctx, conv.ID, "bob", "docs incoming", nil, false)
	require.NoError(t, err)

	valid := models.Attachment{Filename: "lease.pdf", Path: "u/lease.pdf", MimeType: "application/pdf", Size: 1024}
	bad := models.Attachment{Filename: "virus.exe", Path: "u/virus.exe", MimeType: "application/x-msdownload", Size: 10}

	updated, rejected, err := svc.AttachFiles(ctx, msg.ID, []models.Attachment{valid, bad}, false)
	require.NoError(t, err)
	require.Len(t, updated.Attachments, 1)
	assert.Equal(t, "lease.pdf", updated.Attachments[0].Filename)
	require.Len(t, rejected, 1)
	assert.Equal(t, attachments.RuleMimeType, rejected[0].Rule)

	var ve *apperr.ValidationError
	_, _, err = svc.AttachFiles(ctx, "no-such-message", []models.Attachment{valid}, false)
	require.ErrorAs(t, err, &ve)
}

func TestListMessagesPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _, err := svc.CreateMessage(ctx, conv.ID, "bob", "msg", nil, false)
		require.NoError(t, err)
	}

	page1, next, err := svc.ListMessages(ctx, conv.ID, "", 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, next)

	page2, next2, err := svc.ListMessages(ctx, conv.ID, next, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEmpty(t, next2)
	assert.NotEqual(t, page1[1].ID, page2[0].ID)

	rest, _, err := svc.ListMessages(ctx, conv.ID, next2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	_, _, err = svc.ListMessages(ctx, conv.ID, "%%%bad%%%", 2)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cursor", ve.Field)
}

func TestCountUnreadWatermarkScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		m, _, err := svc.CreateMessage(ctx, conv.ID, "bob", "unread", nil, false)
		require.NoError(t, err)
		stamps = append(stamps, m.CreatedAt)
	}

	n, err := svc.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// the sender's own messages are never unread for the sender
	n, err = svc.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, svc.MarkRead(ctx, "alice", models.SourceConversations, stamps[1]))
	n, err = svc.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// repeating with the same or an earlier timestamp changes nothing
	require.NoError(t, svc.MarkRead(ctx, "alice", models.SourceConversations, stamps[1]))
	require.NoError(t, svc.MarkRead(ctx, "alice", models.SourceConversations, stamps[0]))
	n, err = svc.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMarkReadValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ve *apperr.ValidationError
	err := svc.MarkRead(ctx, "alice", "carrier-pigeon", time.Now())
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "source", ve.Field)

	err = svc.MarkRead(ctx, "alice", models.SourceConversations, time.Time{})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "timestamp", ve.Field)
}

func TestSoftDeletedConversationExcludedFromUnread(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	_, _, err = svc.CreateMessage(ctx, conv.ID, "bob", "hello", nil, false)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConversation(ctx, conv.ID))

	n, err := svc.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

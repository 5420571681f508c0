package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborview-properties/messaging-service/internal/models"
)

// MemoryStore implements all three store interfaces in process memory.
// Used in tests and for local development without a Mongo instance.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message // conversationID -> ordered msgs
	watermarks    map[string]time.Time         // userID|source
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
		watermarks:    make(map[string]time.Time),
	}
}

func (s *MemoryStore) CreateConversation(ctx context.Context, members []string, ts time.Time) (*models.Conversation, error) {
	members = NormalizeMembers(members)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.DeletedAt == nil && equalMembers(c.Members, members) {
			return c, nil
		}
	}
	c := &models.Conversation{
		ID:            uuid.NewString(),
		Members:       members,
		CreatedAt:     ts,
		LastMessageAt: ts,
	}
	s.conversations[c.ID] = c
	return c, nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok || c.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) TouchLastActivity(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if ts.After(c.LastMessageAt) {
		c.LastMessageAt = ts
	}
	return nil
}

func (s *MemoryStore) SoftDeleteConversation(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	c.DeletedAt = &ts
	return nil
}

func (s *MemoryStore) MemberConversationIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, c := range s.conversations {
		if c.DeletedAt == nil && c.HasMember(userID) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) InsertMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.messages[m.ConversationID], m)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.messages[m.ConversationID] = msgs
	return nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string, after Cursor, limit int64) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Message{}
	for _, m := range s.messages[conversationID] {
		if !after.IsZero() {
			if m.CreatedAt.Before(after.After) {
				continue
			}
			if m.CreatedAt.Equal(after.After) && m.ID <= after.AfterID {
				continue
			}
		}
		out = append(out, m)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return msgs[len(msgs)-1], nil
}

func (s *MemoryStore) AppendAttachments(ctx context.Context, messageID string, atts []models.Attachment) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ID == messageID {
				m.Attachments = append(m.Attachments, atts...)
				return m, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CountUnreadSince(ctx context.Context, conversationIDs []string, userID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, id := range conversationIDs {
		for _, m := range s.messages[id] {
			if m.SenderID != userID && m.CreatedAt.After(since) {
				n++
			}
		}
	}
	return n, nil
}

func (s *MemoryStore) Advance(ctx context.Context, userID, source string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + source
	if ts.After(s.watermarks[key]) {
		s.watermarks[key] = ts
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID, source string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermarks[userID+"|"+source], nil
}

func equalMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

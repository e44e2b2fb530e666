package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/suPer8Hu/chat-recall/internal/ai"
)

const noSummary = "No summary available"

// CreateConversation starts an empty conversation. Without a title it gets a
// numbered placeholder that the first turn replaces.
func (s *Service) CreateConversation(ctx context.Context, userID uint64, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > titleMaxLen {
		return nil, invalid("title", "too long")
	}

	conv := &Conversation{UserID: userID, Title: title}
	if title == "" {
		n, err := s.repo.CountConversations(ctx, userID)
		if err != nil {
			return nil, err
		}
		conv.Title = placeholderTitle(n)
		conv.AutoTitle = true
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

type ConversationListItem struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastUpdated  int       `json:"last_updated"` // days since UpdatedAt
	LastMessage  *Message  `json:"last_message"`
	MessageCount int64     `json:"message_count"`
	Summary      string    `json:"summary"`
	IsActive     bool      `json:"is_active"`
}

func (s *Service) ListConversations(ctx context.Context, userID uint64) ([]ConversationListItem, error) {
	convs, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	counts, last, err := s.repo.MessageStats(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.repo.now()
	items := make([]ConversationListItem, 0, len(convs))
	for _, c := range convs {
		item := ConversationListItem{
			ID:           c.ID,
			Title:        c.Title,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			LastUpdated:  int(now.Sub(c.UpdatedAt) / (24 * time.Hour)),
			MessageCount: counts[c.ID],
			Summary:      noSummary,
			IsActive:     c.IsActive,
		}
		if m, ok := last[c.ID]; ok {
			item.LastMessage = &m
		}
		if c.Summary != nil && *c.Summary != "" {
			item.Summary = *c.Summary
		}
		items = append(items, item)
	}
	return items, nil
}

// GetConversation returns an active conversation with its turns.
func (s *Service) GetConversation(ctx context.Context, userID, id uint64) (*Conversation, []Message, error) {
	conv, err := s.repo.GetConversation(ctx, userID, id, true)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *Service) RenameConversation(ctx context.Context, userID, id uint64, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > titleMaxLen {
		return nil, invalid("title", "too long")
	}
	if err := s.repo.UpdateTitle(ctx, userID, id, title); err != nil {
		return nil, err
	}
	return s.repo.GetConversation(ctx, userID, id, true)
}

// ArchiveConversation hides the conversation from listings; its turns stay.
func (s *Service) ArchiveConversation(ctx context.Context, userID, id uint64) error {
	return s.repo.Archive(ctx, userID, id)
}

func (s *Service) DeleteConversation(ctx context.Context, userID, id uint64) error {
	return s.repo.DeleteConversation(ctx, userID, id)
}

// ListMessages works on archived conversations too.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID uint64) ([]Message, error) {
	if _, err := s.repo.GetConversation(ctx, userID, conversationID, false); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conversationID)
}

func (s *Service) GetMessage(ctx context.Context, userID, conversationID, messageID uint64) (*Message, error) {
	if _, err := s.repo.GetConversation(ctx, userID, conversationID, false); err != nil {
		return nil, err
	}
	return s.repo.GetMessage(ctx, conversationID, messageID)
}

// AppendMessage stores a turn verbatim, without generating a reply.
func (s *Service) AppendMessage(ctx context.Context, userID, conversationID uint64, role string, content string, metadata map[string]any) (*Message, error) {
	r, err := ai.ParseRole(role)
	if err != nil {
		return nil, invalid("role", err.Error())
	}
	if err := validateContent("content", content); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetConversation(ctx, userID, conversationID, true); err != nil {
		return nil, err
	}

	m := &Message{
		ConversationID: conversationID,
		Role:           r,
		Content:        content,
		Metadata:       metadata,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

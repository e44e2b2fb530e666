package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/ai"
)

const (
	suggestionWindow = 10
	maxSuggestions   = 3

	suggestionPrompt = "You suggest what the user could say next in a conversation with an AI assistant. " +
		"Reply with exactly 3 short suggestions, one per line, without numbering or quotes."
)

// FallbackSuggestions are returned whenever the model cannot produce any.
var FallbackSuggestions = []string{
	"Here's a suggested response...",
	"You might want to ask about...",
	"Consider discussing...",
}

// Suggestions proposes next messages from the last turns of a conversation,
// an ad-hoc context string, or both.
func (s *Service) Suggestions(ctx context.Context, userID uint64, conversationID *uint64, extra string) ([]string, error) {
	extra = strings.TrimSpace(extra)
	if conversationID == nil && extra == "" {
		return nil, invalid("", "either conversation_id or context is required")
	}

	var turns []ai.Message
	if conversationID != nil {
		conv, err := s.repo.GetConversation(ctx, userID, *conversationID, false)
		if err != nil {
			return nil, err
		}
		recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, conv.ID, suggestionWindow)
		if err != nil {
			return nil, err
		}
		// reverse to ASC (oldest -> newest)
		for i := len(recentDesc) - 1; i >= 0; i-- {
			turns = append(turns, ai.Message{Role: recentDesc[i].Role, Content: recentDesc[i].Content})
		}
	}
	if extra != "" {
		turns = append(turns, ai.Message{Role: ai.RoleUser, Content: extra})
	}

	prompt := []ai.Message{
		{Role: ai.RoleSystem, Content: suggestionPrompt},
		{Role: ai.RoleUser, Content: ai.FormatTranscript(turns)},
	}
	reply, err := s.gen.Complete(ctx, prompt, ai.WithTemperature(0.9), ai.WithMaxTokens(200))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("suggestions: generation failed")
		return fallbackSuggestions(), nil
	}

	out := parseSuggestions(reply)
	if len(out) == 0 {
		return fallbackSuggestions(), nil
	}
	return out, nil
}

func fallbackSuggestions() []string {
	return append([]string(nil), FallbackSuggestions...)
}

func parseSuggestions(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.Trim(line, "\"")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

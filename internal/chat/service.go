package chat

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/ai"
	"github.com/suPer8Hu/chat-recall/internal/metrics"
	"github.com/suPer8Hu/chat-recall/internal/search"
)

const (
	// SystemPrompt leads the generation history on a conversation's first exchange.
	SystemPrompt = "You are a helpful AI assistant. Provide clear, concise, and accurate responses."

	defaultSummaryEvery  = 5
	defaultMaxCandidates = 500
	maxContentLen        = 32000
)

type Options struct {
	SearchThreshold     float64
	SearchTopK          int
	SearchMaxCandidates int
	// SummaryEvery triggers a summary when the turn count is a multiple of it.
	SummaryEvery int
}

type Service struct {
	repo     *Repo
	gen      *ai.Generator
	searcher *search.Service
	// embedder is optional; it only feeds the summary search vector.
	embedder ai.Embedder
	opts     Options
}

func NewService(repo *Repo, gen *ai.Generator, searcher *search.Service, embedder ai.Embedder, opts Options) *Service {
	if opts.SummaryEvery <= 0 {
		opts.SummaryEvery = defaultSummaryEvery
	}
	if opts.SearchTopK <= 0 {
		opts.SearchTopK = 5
	}
	if opts.SearchMaxCandidates <= 0 {
		opts.SearchMaxCandidates = defaultMaxCandidates
	}
	if opts.SearchThreshold < 0 || opts.SearchThreshold > 1 {
		opts.SearchThreshold = 0.7
	}
	return &Service{repo: repo, gen: gen, searcher: searcher, embedder: embedder, opts: opts}
}

type ChatResult struct {
	ConversationID uint64  `json:"conversation_id"`
	MessageID      uint64  `json:"message_id"`
	Response       string  `json:"response"`
	Summary        *string `json:"summary"`
}

func validateContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return invalid(field, "must not be empty")
	}
	if len(content) > maxContentLen {
		return invalid(field, "too long")
	}
	return nil
}

// Chat runs one exchange: the user turn is stored, a reply generated and
// stored, and the summary refreshed on every SummaryEvery-th turn. A nil
// conversationID starts a new conversation.
func (s *Service) Chat(ctx context.Context, userID uint64, conversationID *uint64, content string, metadata map[string]any) (*ChatResult, error) {
	conv, _, err := s.BeginTurn(ctx, userID, conversationID, content, metadata)
	if err != nil {
		return nil, err
	}
	return s.CompleteTurn(ctx, userID, conv.ID)
}

// BeginTurn resolves (or creates) the conversation and persists the user
// turn. It is the synchronous half of Chat, shared with the streaming and
// queued paths.
func (s *Service) BeginTurn(ctx context.Context, userID uint64, conversationID *uint64, content string, metadata map[string]any) (*Conversation, *Message, error) {
	if err := validateContent("content", content); err != nil {
		return nil, nil, err
	}

	var conv *Conversation
	var err error
	if conversationID != nil {
		conv, err = s.repo.GetConversation(ctx, userID, *conversationID, true)
	} else {
		conv, err = s.CreateConversation(ctx, userID, "")
	}
	if err != nil {
		return nil, nil, err
	}

	userMsg := &Message{
		ConversationID: conv.ID,
		Role:           ai.RoleUser,
		Content:        content,
		Metadata:       metadata,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, nil, err
	}
	return conv, userMsg, nil
}

// history loads all turns and prepends the system instruction when the
// conversation holds a single turn.
func (s *Service) history(ctx context.Context, conversationID uint64) ([]Turn, error) {
	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	turns := turnsFromMessages(msgs)
	if len(turns) == 1 {
		turns = append([]Turn{{Role: ai.RoleSystem, Content: SystemPrompt}}, turns...)
	}
	return turns, nil
}

// CompleteTurn generates and stores the assistant reply for the latest user
// turn. Provider failures are stored as the fallback reply.
func (s *Service) CompleteTurn(ctx context.Context, userID, conversationID uint64) (*ChatResult, error) {
	conv, err := s.repo.GetConversation(ctx, userID, conversationID, true)
	if err != nil {
		return nil, err
	}
	turns, err := s.history(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	reply := s.gen.Generate(ctx, toProviderMessages(turns))
	return s.finishTurn(ctx, conv, turns, reply)
}

// finishTurn persists the assistant turn and refreshes the summary when the
// turn count calls for it.
func (s *Service) finishTurn(ctx context.Context, conv *Conversation, turns []Turn, reply string) (*ChatResult, error) {
	assistantMsg := &Message{
		ConversationID: conv.ID,
		Role:           ai.RoleAssistant,
		Content:        reply,
	}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	res := &ChatResult{
		ConversationID: conv.ID,
		MessageID:      assistantMsg.ID,
		Response:       reply,
		Summary:        conv.Summary,
	}

	count, err := s.repo.CountMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	if count > 0 && count%int64(s.opts.SummaryEvery) == 0 {
		full := append(turns, Turn{Role: ai.RoleAssistant, Content: reply, Timestamp: assistantMsg.CreatedAt})
		summary, err := s.writeSummary(ctx, conv.ID, full)
		if err != nil {
			return nil, err
		}
		res.Summary = &summary
	}

	zerolog.Ctx(ctx).Info().
		Uint64("conversation_id", conv.ID).
		Uint64("message_id", assistantMsg.ID).
		Int64("turns", count).
		Msg("chat turn completed")
	return res, nil
}

func (s *Service) writeSummary(ctx context.Context, conversationID uint64, turns []Turn) (string, error) {
	summary := s.gen.Summarize(ctx, toProviderMessages(turns))

	var vec []float32
	if s.embedder != nil && summary != ai.FallbackReply && summary != ai.NoMessagesSummary {
		v, err := s.embedder.Embed(ctx, summary)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Uint64("conversation_id", conversationID).Msg("summary embedding failed")
		} else {
			vec = v
		}
	}

	if err := s.repo.UpdateSummary(ctx, conversationID, summary, vec); err != nil {
		return "", err
	}
	metrics.SummariesGenerated.Inc()
	return summary, nil
}

// Summarize regenerates and stores the summary of a conversation the user
// owns. Archived conversations can still be summarized.
func (s *Service) Summarize(ctx context.Context, userID, conversationID uint64) (string, error) {
	conv, err := s.repo.GetConversation(ctx, userID, conversationID, false)
	if err != nil {
		return "", err
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return "", err
	}
	return s.writeSummary(ctx, conv.ID, turnsFromMessages(msgs))
}

type Hit struct {
	ConversationID uint64    `json:"conversation_id"`
	MessageID      uint64    `json:"message_id"`
	Role           ai.Role   `json:"role"`
	Content        string    `json:"content"`
	Similarity     float64   `json:"similarity"`
	Timestamp      time.Time `json:"timestamp"`
	Context        string    `json:"context,omitempty"`
}

// SearchConversation ranks the turns of one active conversation against query.
func (s *Service) SearchConversation(ctx context.Context, userID, conversationID uint64, query string) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalid("search_query", "must not be empty")
	}
	conv, err := s.repo.GetConversation(ctx, userID, conversationID, true)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, query, msgs, map[uint64]string{conv.ID: conv.Title}, s.opts.SearchTopK), nil
}

// SearchAll ranks turns across all of the user's active conversations.
func (s *Service) SearchAll(ctx context.Context, userID uint64, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalid("q", "must not be empty")
	}
	if limit <= 0 {
		limit = s.opts.SearchTopK
	}
	msgs, titles, err := s.repo.ListUserMessages(ctx, userID, s.opts.SearchMaxCandidates)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, query, msgs, titles, limit), nil
}

func (s *Service) rank(ctx context.Context, query string, msgs []Message, titles map[uint64]string, topK int) []Hit {
	cands := make([]search.Candidate, len(msgs))
	for i, m := range msgs {
		cands[i] = search.Candidate{
			Content:   m.Content,
			Role:      m.Role,
			Timestamp: m.CreatedAt,
			Embedding: m.Embedding,
		}
	}

	results, enriched := s.searcher.Search(ctx, query, cands, s.opts.SearchThreshold, topK)
	s.persistEmbeddings(ctx, msgs, enriched)

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		m := msgs[r.Index]
		hits = append(hits, Hit{
			ConversationID: m.ConversationID,
			MessageID:      m.ID,
			Role:           r.Role,
			Content:        r.Content,
			Similarity:     r.Similarity,
			Timestamp:      r.Timestamp,
			Context:        titles[m.ConversationID],
		})
	}
	return hits
}

// persistEmbeddings stores embeddings computed during a search so the same
// turn is never embedded twice. Failures only cost a recomputation.
func (s *Service) persistEmbeddings(ctx context.Context, msgs []Message, enriched []search.Candidate) {
	for i := range enriched {
		if i >= len(msgs) || msgs[i].Embedding != nil || enriched[i].Embedding == nil {
			continue
		}
		if err := s.repo.UpdateMessageEmbedding(ctx, msgs[i].ID, enriched[i].Embedding); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Uint64("message_id", msgs[i].ID).Msg("persist embedding failed")
		}
	}
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/chat-recall/internal/ai"
	"github.com/suPer8Hu/chat-recall/internal/search"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingProvider struct {
	mu    sync.Mutex
	calls [][]ai.Message
	reply func(msgs []ai.Message) (string, error)
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message, opts ai.ChatOptions) (string, error) {
	_ = ctx
	_ = opts
	p.mu.Lock()
	// copy to avoid mutations
	p.calls = append(p.calls, append([]ai.Message(nil), messages...))
	p.mu.Unlock()
	if p.reply == nil {
		return "ok", nil
	}
	return p.reply(messages)
}

func (p *recordingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *recordingProvider) lastCall() []ai.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func isSummaryRequest(msgs []ai.Message) bool {
	return len(msgs) > 0 && msgs[0].Role == ai.RoleSystem && strings.Contains(msgs[0].Content, "summarizes conversations")
}

// wordEmbedder embeds text as keyword hits so similarity is predictable.
type wordEmbedder struct {
	mu    sync.Mutex
	calls int
}

var embedWords = []string{"refund", "weather", "summary", "ok"}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	lower := strings.ToLower(text)
	vec := make([]float32, len(embedWords))
	for i, w := range embedWords {
		if strings.Contains(lower, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func (e *wordEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Conversation{}, &Message{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type testEnv struct {
	db   *gorm.DB
	repo *Repo
	prov *recordingProvider
	emb  *wordEmbedder
	svc  *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)
	prov := &recordingProvider{}
	emb := &wordEmbedder{}
	gen := ai.NewGenerator(prov, "test-model")
	svc := NewService(repo, gen, search.NewService(emb), emb, Options{
		SearchThreshold: 0.5,
		SearchTopK:      5,
		SummaryEvery:    5,
	})
	return &testEnv{db: db, repo: repo, prov: prov, emb: emb, svc: svc}
}

func (e *testEnv) messages(t *testing.T, conversationID uint64) []Message {
	t.Helper()
	msgs, err := e.repo.ListMessages(context.Background(), conversationID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return msgs
}

func (e *testEnv) conversation(t *testing.T, id uint64) Conversation {
	t.Helper()
	var c Conversation
	if err := e.db.First(&c, id).Error; err != nil {
		t.Fatalf("load conversation %d: %v", id, err)
	}
	return c
}

func TestChat_NewConversationFromFirstTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Chat(ctx, 1, nil, "Hello there", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.ConversationID == 0 {
		t.Fatalf("expected numeric conversation id")
	}
	if res.Response != "ok" {
		t.Fatalf("unexpected response: %q", res.Response)
	}

	conv := env.conversation(t, res.ConversationID)
	if conv.Title != "Hello there" {
		t.Fatalf("expected title %q, got %q", "Hello there", conv.Title)
	}
	if conv.AutoTitle {
		t.Fatalf("auto title flag should be cleared after the first turn")
	}

	msgs := env.messages(t, res.ConversationID)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser || msgs[0].Content != "Hello there" {
		t.Fatalf("unexpected user msg: role=%q content=%q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != ai.RoleAssistant || msgs[1].Content != "ok" || msgs[1].ID != res.MessageID {
		t.Fatalf("unexpected assistant msg: role=%q content=%q", msgs[1].Role, msgs[1].Content)
	}

	// first exchange: generation sees a leading system turn that is not stored
	sent := env.prov.lastCall()
	if len(sent) != 2 || sent[0].Role != ai.RoleSystem || sent[0].Content != SystemPrompt {
		t.Fatalf("expected system prompt to lead the first exchange, got %+v", sent)
	}
}

func TestChat_ExistingConversationAddsTwoTurns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.Chat(ctx, 1, nil, "one", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	before := len(env.messages(t, first.ConversationID))

	id := first.ConversationID
	if _, err := env.svc.Chat(ctx, 1, &id, "two", nil); err != nil {
		t.Fatalf("chat: %v", err)
	}
	after := len(env.messages(t, id))
	if after-before != 2 {
		t.Fatalf("expected turn count to grow by 2, got %d -> %d", before, after)
	}

	sent := env.prov.lastCall()
	if len(sent) != 3 || sent[0].Role != ai.RoleUser {
		t.Fatalf("later exchanges must not inject a system turn, got %+v", sent)
	}
	if sent[2].Content != "two" {
		t.Fatalf("expected newest user turn last, got %q", sent[2].Content)
	}
	if env.conversation(t, id).Title != "one" {
		t.Fatalf("title must only be derived from the first turn")
	}
}

func TestChat_LongFirstTurnTitleIsTruncated(t *testing.T) {
	env := newTestEnv(t)
	content := strings.Repeat("é", 60)

	res, err := env.svc.Chat(context.Background(), 1, nil, content, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	want := strings.Repeat("é", 50) + "..."
	if got := env.conversation(t, res.ConversationID).Title; got != want {
		t.Fatalf("expected title %q, got %q", want, got)
	}
}

func TestChat_SummaryOnMultiplesOfFive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.prov.reply = func(msgs []ai.Message) (string, error) {
		if isSummaryRequest(msgs) {
			return "summary of refund talk", nil
		}
		return "ok", nil
	}

	conv, err := env.svc.CreateConversation(ctx, 1, "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for i, role := range []string{"user", "assistant", "user"} {
		if _, err := env.svc.AppendMessage(ctx, 1, conv.ID, role, fmt.Sprintf("seed %d", i), nil); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	// 3 + 2 = 5 turns
	id := conv.ID
	res, err := env.svc.Chat(ctx, 1, &id, "about a refund", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.Summary == nil || *res.Summary != "summary of refund talk" {
		t.Fatalf("expected summary at 5 turns, got %v", res.Summary)
	}
	stored := env.conversation(t, id)
	if stored.Summary == nil || *stored.Summary != "summary of refund talk" {
		t.Fatalf("summary not persisted: %v", stored.Summary)
	}
	if len(stored.SearchVector) == 0 {
		t.Fatalf("expected summary search vector to be stored")
	}

	summaryReq := env.prov.lastCall()
	if !isSummaryRequest(summaryReq) {
		t.Fatalf("expected last provider call to be the summary")
	}
	if !strings.Contains(summaryReq[1].Content, "assistant: ok") {
		t.Fatalf("summary transcript should include the new assistant turn: %q", summaryReq[1].Content)
	}

	// 7 turns: no summary call
	callsBefore := env.prov.callCount()
	res, err = env.svc.Chat(ctx, 1, &id, "again", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if env.prov.callCount()-callsBefore != 1 {
		t.Fatalf("expected only the generation call at 7 turns")
	}
	if res.Summary == nil || *res.Summary != "summary of refund talk" {
		t.Fatalf("summary should be returned unchanged, got %v", res.Summary)
	}
}

func TestChat_ProviderFailureStoresApology(t *testing.T) {
	env := newTestEnv(t)
	env.prov.reply = func([]ai.Message) (string, error) {
		return "", errors.New("upstream 500")
	}

	res, err := env.svc.Chat(context.Background(), 1, nil, "hi", nil)
	if err != nil {
		t.Fatalf("generation failure must not fail the exchange: %v", err)
	}
	if res.Response != ai.FallbackReply {
		t.Fatalf("expected apology, got %q", res.Response)
	}
	msgs := env.messages(t, res.ConversationID)
	if len(msgs) != 2 || msgs[1].Content != ai.FallbackReply {
		t.Fatalf("expected apology to be stored as the assistant turn")
	}
}

func TestChat_RejectsMissingArchivedAndForeignConversations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Chat(ctx, 1, nil, "mine", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	id := res.ConversationID

	if _, err := env.svc.Chat(ctx, 2, &id, "not yours", nil); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	missing := id + 100
	if _, err := env.svc.Chat(ctx, 1, &missing, "nope", nil); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not found for missing id, got %v", err)
	}

	if err := env.svc.ArchiveConversation(ctx, 1, id); err != nil {
		t.Fatalf("archive: %v", err)
	}
	calls := env.prov.callCount()
	if _, err := env.svc.Chat(ctx, 1, &id, "after archive", nil); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected archived conversation to reject turns, got %v", err)
	}
	if env.prov.callCount() != calls {
		t.Fatalf("provider must not be called for rejected requests")
	}
	if n := len(env.messages(t, id)); n != 2 {
		t.Fatalf("archived conversation gained turns: %d", n)
	}
}

func TestChat_EmptyContentIsValidationError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Chat(context.Background(), 1, nil, "   ", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if env.prov.callCount() != 0 {
		t.Fatalf("provider must not be called on validation failure")
	}
	var n int64
	env.db.Model(&Conversation{}).Count(&n)
	if n != 0 {
		t.Fatalf("no conversation should be created, got %d", n)
	}
}

func TestInsertMessage_UpdatedAtTracksNewestTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	now := base
	env.repo.now = func() time.Time { return now }

	conv, err := env.svc.CreateConversation(ctx, 1, "clock")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now = base.Add(time.Minute)
	m1, err := env.svc.AppendMessage(ctx, 1, conv.ID, "user", "first", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := env.conversation(t, conv.ID).UpdatedAt; !got.Equal(m1.CreatedAt) {
		t.Fatalf("updated_at %v != newest turn %v", got, m1.CreatedAt)
	}

	// clock steps back: updated_at must not decrease
	now = base
	m2, err := env.svc.AppendMessage(ctx, 1, conv.ID, "assistant", "second", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got := env.conversation(t, conv.ID).UpdatedAt
	if got.Before(m1.CreatedAt) || !got.Equal(m2.CreatedAt) {
		t.Fatalf("updated_at regressed: %v (first turn %v)", got, m1.CreatedAt)
	}
	if env.conversation(t, conv.ID).Title != "clock" {
		t.Fatalf("supplied title must not be overwritten")
	}
}

func TestAppendMessage_RejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, err := env.svc.CreateConversation(ctx, 1, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = env.svc.AppendMessage(ctx, 1, conv.ID, "tool", "x", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "role" {
		t.Fatalf("expected role validation error, got %v", err)
	}
	if n := len(env.messages(t, conv.ID)); n != 0 {
		t.Fatalf("unexpected turns: %d", n)
	}
}

func TestArchive_HidesFromListButKeepsTurns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.svc.Chat(ctx, 1, nil, "keep me", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	b, err := env.svc.Chat(ctx, 1, nil, "archive me", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if err := env.svc.ArchiveConversation(ctx, 1, b.ConversationID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := env.svc.ArchiveConversation(ctx, 1, b.ConversationID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("archiving twice should report not found, got %v", err)
	}

	items, err := env.svc.ListConversations(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != a.ConversationID {
		t.Fatalf("expected only the active conversation, got %+v", items)
	}
	if _, _, err := env.svc.GetConversation(ctx, 1, b.ConversationID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("archived conversation should not be retrievable, got %v", err)
	}

	msgs, err := env.svc.ListMessages(ctx, 1, b.ConversationID)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("archived turns must remain listable: n=%d err=%v", len(msgs), err)
	}
	m, err := env.svc.GetMessage(ctx, 1, b.ConversationID, msgs[0].ID)
	if err != nil || m.Content != "archive me" {
		t.Fatalf("archived turn lookup failed: %v", err)
	}
	if _, err := env.svc.GetMessage(ctx, 2, b.ConversationID, msgs[0].ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("other users must not see turns, got %v", err)
	}
}

func TestListConversations_StatsAndOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older, err := env.svc.Chat(ctx, 1, nil, "older", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	newer, err := env.svc.CreateConversation(ctx, 1, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if newer.Title != "Conversation 2" {
		t.Fatalf("expected numbered placeholder, got %q", newer.Title)
	}
	id := older.ConversationID
	if _, err := env.svc.Chat(ctx, 1, &id, "bump", nil); err != nil {
		t.Fatalf("chat: %v", err)
	}

	items, err := env.svc.ListConversations(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(items))
	}
	if items[0].ID != older.ConversationID {
		t.Fatalf("most recently updated conversation should come first")
	}
	if items[0].MessageCount != 4 || items[0].LastMessage == nil || items[0].LastMessage.Role != ai.RoleAssistant {
		t.Fatalf("unexpected stats: %+v", items[0])
	}
	if items[1].MessageCount != 0 || items[1].LastMessage != nil || items[1].Summary != noSummary {
		t.Fatalf("unexpected stats for empty conversation: %+v", items[1])
	}
}

func TestDeleteConversation_RemovesTurns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Chat(ctx, 1, nil, "bye", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if err := env.svc.DeleteConversation(ctx, 2, res.ConversationID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("other users must not delete, got %v", err)
	}
	if err := env.svc.DeleteConversation(ctx, 1, res.ConversationID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var n int64
	env.db.Model(&Message{}).Where("conversation_id = ?", res.ConversationID).Count(&n)
	if n != 0 {
		t.Fatalf("expected turns to be deleted, got %d", n)
	}
}

func TestRenameConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, 1, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	renamed, err := env.svc.RenameConversation(ctx, 1, conv.ID, "Trip planning")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Title != "Trip planning" {
		t.Fatalf("unexpected title %q", renamed.Title)
	}

	// an explicit title is not replaced by the first turn
	if _, err := env.svc.AppendMessage(ctx, 1, conv.ID, "user", "hello", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if env.conversation(t, conv.ID).Title != "Trip planning" {
		t.Fatalf("renamed title was overwritten")
	}
}

func TestSearchConversation_PersistsEmbeddings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, 1, "Billing")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, c := range []string{"How do refunds work?", "Weather is nice"} {
		if _, err := env.svc.AppendMessage(ctx, 1, conv.ID, "user", c, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	hits, err := env.svc.SearchConversation(ctx, 1, conv.ID, "refund")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "How do refunds work?" || hits[0].Context != "Billing" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if hits[0].Similarity < 0.5 {
		t.Fatalf("similarity below threshold: %v", hits[0].Similarity)
	}
	if env.emb.callCount() != 3 {
		t.Fatalf("expected query + 2 candidate embeddings, got %d", env.emb.callCount())
	}

	for _, m := range env.messages(t, conv.ID) {
		if len(m.Embedding) == 0 {
			t.Fatalf("embedding for %q was not persisted", m.Content)
		}
	}

	// stored embeddings are reused: only the query is embedded again
	if _, err := env.svc.SearchConversation(ctx, 1, conv.ID, "refund"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if env.emb.callCount() != 4 {
		t.Fatalf("expected only the query to be embedded, got %d calls", env.emb.callCount())
	}
}

func TestSearchAll_SpansActiveConversations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		conv, err := env.svc.CreateConversation(ctx, 1, title)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := env.svc.AppendMessage(ctx, 1, conv.ID, "user", "refund question "+title, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
		if title == "C" {
			if err := env.svc.ArchiveConversation(ctx, 1, conv.ID); err != nil {
				t.Fatalf("archive: %v", err)
			}
		}
	}
	other, _ := env.svc.CreateConversation(ctx, 2, "other")
	if _, err := env.svc.AppendMessage(ctx, 2, other.ID, "user", "refund for someone else", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	hits, err := env.svc.SearchAll(ctx, 1, "refund", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	for _, h := range hits {
		if h.Context != "A" && h.Context != "B" {
			t.Fatalf("hit from unexpected conversation: %+v", h)
		}
	}

	if _, err := env.svc.SearchAll(ctx, 1, " ", 10); err == nil {
		t.Fatalf("expected validation error for blank query")
	}
}

func TestSummarize_EmptyConversationUsesSentinel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv, err := env.svc.CreateConversation(ctx, 1, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	summary, err := env.svc.Summarize(ctx, 1, conv.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != ai.NoMessagesSummary {
		t.Fatalf("expected sentinel, got %q", summary)
	}
	if env.prov.callCount() != 0 || env.emb.callCount() != 0 {
		t.Fatalf("no provider calls expected for an empty conversation")
	}
	if s := env.conversation(t, conv.ID).Summary; s == nil || *s != ai.NoMessagesSummary {
		t.Fatalf("summary not stored: %v", s)
	}
}

func TestSuggestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Suggestions(ctx, 1, nil, ""); err == nil {
		t.Fatalf("expected validation error without conversation or context")
	}

	env.prov.reply = func([]ai.Message) (string, error) {
		return "1. Ask about pricing\n- \"Request a demo\"\n\nCompare plans\nExtra line", nil
	}
	got, err := env.svc.Suggestions(ctx, 1, nil, "I want to buy")
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	want := []string{"Ask about pricing", "Request a demo", "Compare plans"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected suggestions: %q", got)
	}

	env.prov.reply = func([]ai.Message) (string, error) { return "", errors.New("down") }
	got, err = env.svc.Suggestions(ctx, 1, nil, "I want to buy")
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(got) != len(FallbackSuggestions) || got[0] != FallbackSuggestions[0] {
		t.Fatalf("expected fallback suggestions, got %q", got)
	}

	missing := uint64(999)
	if _, err := env.svc.Suggestions(ctx, 1, &missing, ""); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"short", "short"},
		{strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{strings.Repeat("日", 55), strings.Repeat("日", 50) + "..."},
	}
	for _, tt := range tests {
		if got := TitleFromContent(tt.in); got != tt.want {
			t.Fatalf("TitleFromContent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

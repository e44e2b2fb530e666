package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chat-recall/internal/ai"
)

// fakeEmbedder maps known texts to fixed vectors; unknown text fails.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	v, ok := f.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSearch_RefundExample(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"refund":               {1, 0, 0},
		"How do refunds work?": {0.9, 0.1, 0},
		"Weather is nice":      {0, 0.2, 1},
	}}
	svc := NewService(emb)

	results, enriched := svc.Search(context.Background(), "refund", []Candidate{
		{Content: "How do refunds work?", Role: ai.RoleUser},
		{Content: "Weather is nice", Role: ai.RoleUser},
	}, 0.7, 5)

	require.Len(t, results, 1)
	assert.Equal(t, "How do refunds work?", results[0].Content)
	assert.Equal(t, 0, results[0].Index)
	assert.GreaterOrEqual(t, results[0].Similarity, 0.7)
	assert.Equal(t, 3, emb.callCount())

	require.Len(t, enriched, 2)
	assert.NotNil(t, enriched[0].Embedding)
	assert.NotNil(t, enriched[1].Embedding)
}

func TestSearch_EmptyQueryOrCandidatesSkipsProvider(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	svc := NewService(emb)

	res, _ := svc.Search(context.Background(), "", []Candidate{{Content: "x"}}, 0, 5)
	assert.Empty(t, res)
	res, _ = svc.Search(context.Background(), "   ", []Candidate{{Content: "x"}}, 0, 5)
	assert.Empty(t, res)
	res, _ = svc.Search(context.Background(), "refund", nil, 0, 5)
	assert.Empty(t, res)

	assert.Zero(t, emb.callCount())
}

func TestSearch_QueryEmbeddingFailureIsEmpty(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"a": {1}}}
	svc := NewService(emb)

	res, _ := svc.Search(context.Background(), "unknown query", []Candidate{{Content: "a"}}, 0, 5)
	assert.Empty(t, res)
	assert.Equal(t, 1, emb.callCount())
}

func TestSearch_ReusesExistingEmbeddings(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"q":    {1, 0},
		"cold": {1, 0},
	}}
	svc := NewService(emb)

	cands := []Candidate{
		{Content: "warm", Embedding: []float32{1, 0}},
		{Content: "cold"},
		{Content: ""},
	}
	res, enriched := svc.Search(context.Background(), "q", cands, 0.5, 5)

	assert.Len(t, res, 2)
	// one query + one unembedded candidate; empty content never embedded
	assert.Equal(t, 2, emb.callCount())
	assert.Nil(t, cands[1].Embedding, "input must not be mutated")
	assert.Equal(t, []float32{1, 0}, enriched[1].Embedding)
}

func TestSearch_SkipsFailedAndMismatchedCandidates(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"q":     {1, 0},
		"good":  {1, 0},
		"short": {1},
	}}
	svc := NewService(emb)

	res, _ := svc.Search(context.Background(), "q", []Candidate{
		{Content: "broken"},
		{Content: "short"},
		{Content: "good"},
	}, 0, 5)

	require.Len(t, res, 1)
	assert.Equal(t, "good", res[0].Content)
	assert.Equal(t, 2, res[0].Index)
}

func TestSearch_TimestampFallsBackToNow(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1}}}
	svc := NewService(emb, WithClock(func() time.Time { return fixed }))

	res, _ := svc.Search(context.Background(), "q", []Candidate{
		{Content: "a", Embedding: []float32{1}, Timestamp: created},
		{Content: "b", Embedding: []float32{1}},
	}, 0, 5)

	require.Len(t, res, 2)
	assert.Equal(t, created, res[0].Timestamp)
	assert.Equal(t, fixed, res[1].Timestamp)
}

func TestRank_ThresholdTopKAndStableOrder(t *testing.T) {
	q := []float32{1, 0}
	cands := []Candidate{
		{Content: "tie-1", Embedding: []float32{1, 1}},
		{Content: "best", Embedding: []float32{1, 0}},
		{Content: "low", Embedding: []float32{0, 1}},
		{Content: "tie-2", Embedding: []float32{2, 2}},
		{Content: "tie-3", Embedding: []float32{4, 4}},
	}

	res := Rank(q, cands, 0.5, 3, time.Now())

	require.Len(t, res, 3)
	assert.Equal(t, "best", res[0].Content)
	assert.Equal(t, "tie-1", res[1].Content)
	assert.Equal(t, "tie-2", res[2].Content)
	for i, r := range res {
		assert.GreaterOrEqual(t, r.Similarity, 0.5)
		if i > 0 {
			assert.GreaterOrEqual(t, res[i-1].Similarity, r.Similarity)
		}
	}
}

func TestRank_NonPositiveTopK(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{"q": {1}}}
	svc := NewService(emb)

	res, _ := svc.Search(context.Background(), "q", []Candidate{{Content: "a", Embedding: []float32{1}}}, 0, 0)
	assert.Empty(t, res)
	assert.Zero(t, emb.callCount())
}

func TestEnrich_BoundedConcurrencyKeepsOrder(t *testing.T) {
	vectors := map[string][]float32{}
	var cands []Candidate
	for i := 0; i < 20; i++ {
		text := string(rune('a' + i))
		vectors[text] = []float32{float32(i + 1)}
		cands = append(cands, Candidate{Content: text})
	}
	svc := NewService(&fakeEmbedder{vectors: vectors}, WithConcurrency(3))

	out := svc.Enrich(context.Background(), cands)

	require.Len(t, out, 20)
	for i, c := range out {
		assert.Equal(t, []float32{float32(i + 1)}, c.Embedding)
		assert.Nil(t, cands[i].Embedding)
	}
}

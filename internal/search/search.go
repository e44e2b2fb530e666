package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/ai"
	"github.com/suPer8Hu/chat-recall/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Candidate is anything turn-like that can be scored against a query.
// Embedding is nil when it has not been computed yet.
type Candidate struct {
	Content   string
	Role      ai.Role
	Timestamp time.Time
	Embedding []float32
}

type Result struct {
	// Index is the position of the matched candidate in the input slice.
	Index      int       `json:"-"`
	Content    string    `json:"content"`
	Role       ai.Role   `json:"role"`
	Timestamp  time.Time `json:"timestamp"`
	Similarity float64   `json:"similarity"`
}

type Option func(*Service)

// WithConcurrency bounds how many candidate embeddings are computed at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service is the semantic search service. It never fails: provider errors
// shrink the result set instead.
type Service struct {
	embedder    ai.Embedder
	concurrency int
	now         func() time.Time
}

func NewService(embedder ai.Embedder, opts ...Option) *Service {
	s := &Service{
		embedder:    embedder,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search ranks candidates against query. Besides the results it returns the
// enriched candidate set so callers can persist embeddings computed here; the
// input slice is never modified.
func (s *Service) Search(ctx context.Context, query string, candidates []Candidate, threshold float64, topK int) ([]Result, []Candidate) {
	if strings.TrimSpace(query) == "" || len(candidates) == 0 || topK <= 0 {
		return []Result{}, candidates
	}

	log := zerolog.Ctx(ctx)
	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("search: query embedding failed")
		return []Result{}, candidates
	}

	enriched := s.Enrich(ctx, candidates)
	results := Rank(qvec, enriched, threshold, topK, s.now())
	metrics.SearchResults.Observe(float64(len(results)))
	log.Debug().
		Int("candidates", len(candidates)).
		Int("results", len(results)).
		Float64("threshold", threshold).
		Msg("search: ranked")
	return results, enriched
}

// Enrich returns a copy of candidates with missing embeddings computed.
// Candidates whose embedding fails keep a nil Embedding.
func (s *Service) Enrich(ctx context.Context, candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range out {
		if out[i].Embedding != nil || strings.TrimSpace(out[i].Content) == "" {
			continue
		}
		g.Go(func() error {
			vec, err := s.embedder.Embed(ctx, out[i].Content)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Int("candidate", i).Msg("search: candidate embedding failed")
				return nil
			}
			out[i].Embedding = vec
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Rank scores embedded candidates against qvec, keeps those at or above
// threshold and returns at most topK of them, best first. Equal scores keep
// their input order.
func Rank(qvec []float32, candidates []Candidate, threshold float64, topK int, now time.Time) []Result {
	results := make([]Result, 0, len(candidates))
	for i, c := range candidates {
		if c.Embedding == nil || strings.TrimSpace(c.Content) == "" {
			continue
		}
		sim, err := CosineSimilarity(qvec, c.Embedding)
		if err != nil || sim < threshold {
			continue
		}
		ts := c.Timestamp
		if ts.IsZero() {
			ts = now
		}
		results = append(results, Result{
			Index:      i,
			Content:    c.Content,
			Role:       c.Role,
			Timestamp:  ts,
			Similarity: sim,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

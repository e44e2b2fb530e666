package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/metrics"
)

const (
	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 1000

	// FallbackReply is what users see when the provider fails.
	FallbackReply = "I'm sorry, I encountered an error while processing your request."
	// NoMessagesSummary is returned for an empty transcript without calling the provider.
	NoMessagesSummary = "No messages in conversation"

	summaryWindow       = 10
	summarySystemPrompt = "You are a helpful assistant that summarizes conversations concisely. " +
		"Create a brief, informative summary of the key points discussed in the conversation. " +
		"Focus on the main topics, decisions, and action items. " +
		"Keep the summary under 3 sentences."
)

type Option func(*ChatOptions)

func WithModel(model string) Option {
	return func(o *ChatOptions) {
		if m := strings.TrimSpace(model); m != "" {
			o.Model = m
		}
	}
}

func WithTemperature(t float32) Option {
	return func(o *ChatOptions) { o.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *ChatOptions) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// Generator is the response generation service. Generate and Summarize are
// fail-soft: provider errors become FallbackReply and are only logged.
type Generator struct {
	provider     Provider
	defaultModel string
}

func NewGenerator(provider Provider, defaultModel string) *Generator {
	return &Generator{provider: provider, defaultModel: defaultModel}
}

func (g *Generator) options(opts []Option) ChatOptions {
	o := ChatOptions{
		Model:       g.defaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Complete returns the trimmed provider reply or the provider error.
func (g *Generator) Complete(ctx context.Context, turns []Message, opts ...Option) (string, error) {
	if g.provider == nil {
		return "", errors.New("generator: no provider configured")
	}
	o := g.options(opts)

	start := time.Now()
	reply, err := g.provider.Chat(ctx, turns, o)
	metrics.ProviderDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	metrics.ProviderCalls.WithLabelValues("chat", metrics.Status(err)).Inc()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (g *Generator) Generate(ctx context.Context, turns []Message, opts ...Option) string {
	reply, err := g.Complete(ctx, turns, opts...)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int("turns", len(turns)).Msg("generate response failed")
		return FallbackReply
	}
	return reply
}

// Stream delivers the reply incrementally. Providers without streaming
// support fall back to a single chunk from Complete.
func (g *Generator) Stream(ctx context.Context, turns []Message, opts ...Option) (<-chan string, <-chan error) {
	sp, ok := g.provider.(StreamProvider)
	if ok {
		metrics.ProviderCalls.WithLabelValues("stream", "started").Inc()
		return sp.StreamChat(ctx, turns, g.options(opts))
	}

	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		reply, err := g.Complete(ctx, turns, opts...)
		if err != nil {
			errs <- err
			return
		}
		if reply != "" {
			chunks <- reply
		}
	}()
	return chunks, errs
}

// Summarize produces a short synopsis of the most recent turns.
func (g *Generator) Summarize(ctx context.Context, turns []Message) string {
	if len(turns) == 0 {
		return NoMessagesSummary
	}
	if len(turns) > summaryWindow {
		turns = turns[len(turns)-summaryWindow:]
	}

	prompt := []Message{
		{Role: RoleSystem, Content: summarySystemPrompt},
		{Role: RoleUser, Content: "Please summarize this conversation:\n" + FormatTranscript(turns)},
	}
	return g.Generate(ctx, prompt)
}

// FormatTranscript renders turns as "role: content" lines.
func FormatTranscript(turns []Message) string {
	var b strings.Builder
	for i, m := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}

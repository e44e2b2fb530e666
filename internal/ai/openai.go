package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultEmbeddingModel = "text-embedding-ada-002"
	defaultDimensions     = 1536
)

type OpenAIConfig struct {
	APIKey string
	// BaseURL lets any OpenAI-compatible server (Ollama, OpenRouter, a proxy) stand in.
	BaseURL        string
	EmbeddingModel string
	// Dimensions is the expected embedding length; other lengths are treated as failures.
	Dimensions int
	Timeout    time.Duration
}

// OpenAIProvider implements Provider, StreamProvider and Embedder on top of
// the OpenAI HTTP API. It is safe for concurrent use.
type OpenAIProvider struct {
	client         *openai.Client
	apiKey         string
	embeddingModel string
	dimensions     int
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(oc),
		apiKey:         cfg.APIKey,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
	}
}

func (p *OpenAIProvider) EmbeddingModel() string { return p.embeddingModel }

func (p *OpenAIProvider) request(messages []Message, opts ChatOptions, stream bool) (openai.ChatCompletionRequest, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return openai.ChatCompletionRequest{}, errors.New("openai: api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		return openai.ChatCompletionRequest{}, errors.New("openai: model is required")
	}

	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    out,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		N:           1,
		Stream:      stream,
	}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	req, err := p.request(messages, opts, false)
	if err != nil {
		return "", err
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamChat streams assistant content chunks.
// It returns immediately with two channels; both will be closed when streaming ends.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message, opts ChatOptions) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		req, err := p.request(messages, opts, true)
		if err != nil {
			errs <- err
			return
		}

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errs <- fmt.Errorf("openai: open stream: %w", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("openai: stream: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case chunks <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openai: empty embedding input")
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no embedding data returned")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != p.dimensions {
		return nil, fmt.Errorf("openai: embedding has %d dimensions, want %d", len(vec), p.dimensions)
	}
	return vec, nil
}

// Compile-time interface satisfaction check.
var (
	_ Provider       = (*OpenAIProvider)(nil)
	_ StreamProvider = (*OpenAIProvider)(nil)
	_ Embedder       = (*OpenAIProvider)(nil)
)

package ai

import (
	"context"
	"fmt"
	"strings"
)

// Role is the closed set of speakers a turn can have.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ParseRole rejects anything outside the enumeration; it does not normalise case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type Message struct {
	Role    Role
	Content string
}

// ChatOptions are resolved per call by the Generator; providers never apply defaults.
type ChatOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}

// StreamProvider is an optional interface. Providers may implement streaming chat.
// Both channels are closed when streaming ends; at most one error is sent.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message, opts ChatOptions) (<-chan string, <-chan error)
}

// Embedder turns non-empty text into a fixed-length vector. On failure it
// returns an error and never a partial or zero vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

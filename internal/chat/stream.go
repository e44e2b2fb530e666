package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/ai"
)

// Stream is an exchange whose reply is delivered incrementally. Chunks is
// closed when generation ends; then exactly one of Result or Errs yields a
// value and both are closed.
type Stream struct {
	ConversationID uint64
	UserMessageID  uint64

	Chunks <-chan string
	Result <-chan *ChatResult
	Errs   <-chan error
}

// SendMessageStream stores the user message immediately, streams assistant chunks,
// and finally stores the assistant message after streaming completes.
// Validation and lookup failures are returned before anything is streamed.
// If ctx is cancelled mid-stream the assistant turn is not stored.
func (s *Service) SendMessageStream(ctx context.Context, userID uint64, conversationID *uint64, content string, metadata map[string]any) (*Stream, error) {
	conv, userMsg, err := s.BeginTurn(ctx, userID, conversationID, content, metadata)
	if err != nil {
		return nil, err
	}
	turns, err := s.history(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	outChunks := make(chan string, 16)
	outResult := make(chan *ChatResult, 1)
	outErrs := make(chan error, 1)

	go func() {
		defer close(outErrs)
		defer close(outResult)

		log := zerolog.Ctx(ctx)
		pChunks, pErrs := s.gen.Stream(ctx, toProviderMessages(turns))

		var b strings.Builder
		cancelled := false
		for c := range pChunks {
			b.WriteString(c)
			select {
			case outChunks <- c:
			case <-ctx.Done():
				cancelled = true
			}
			if cancelled {
				break
			}
		}
		if cancelled {
			// let the provider goroutine finish
			for range pChunks {
			}
		}

		var streamErr error
		for err := range pErrs {
			if err != nil {
				streamErr = err
			}
		}

		if ctx.Err() != nil {
			close(outChunks)
			log.Info().Uint64("conversation_id", conv.ID).Msg("stream cancelled by client")
			outErrs <- ctx.Err()
			return
		}

		reply := strings.TrimSpace(b.String())
		if streamErr != nil {
			log.Error().Err(streamErr).Uint64("conversation_id", conv.ID).Int("partial_len", len(reply)).Msg("stream generation failed")
		}
		if reply == "" {
			// the client has seen nothing yet, so the fallback is the whole reply
			reply = ai.FallbackReply
			outChunks <- reply
		}
		close(outChunks)

		res, err := s.finishTurn(ctx, conv, turns, reply)
		if err != nil {
			outErrs <- err
			return
		}
		outResult <- res
	}()

	return &Stream{
		ConversationID: conv.ID,
		UserMessageID:  userMsg.ID,
		Chunks:         outChunks,
		Result:         outResult,
		Errs:           outErrs,
	}, nil
}

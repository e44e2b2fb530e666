package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/chat"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxFrameSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is used in both directions. Clients send content (and optionally
// conversation_id and metadata); the server answers with typed frames.
type wsFrame struct {
	Type           string         `json:"type"`
	Content        string         `json:"content,omitempty"`
	Delta          string         `json:"delta,omitempty"`
	ConversationID *uint64        `json:"conversation_id,omitempty"`
	MessageID      uint64         `json:"message_id,omitempty"`
	UserMessageID  uint64         `json:"user_message_id,omitempty"`
	Summary        *string        `json:"summary,omitempty"`
	Message        string         `json:"message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ChatWS serves streaming chat over a WebSocket. Each client frame is one
// exchange; replies arrive as "meta", "chunk"... then "done" or "error".
func (h *Handler) ChatWS(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxFrameSize)

	log := zerolog.Ctx(c.Request.Context())
	for {
		var in wsFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("ws read failed")
			}
			return
		}
		if err := h.wsExchange(c.Request.Context(), conn, uid, in); err != nil {
			log.Warn().Err(err).Msg("ws write failed")
			return
		}
	}
}

// wsExchange streams one reply. It returns an error only when the
// connection is no longer writable.
func (h *Handler) wsExchange(parent context.Context, conn *websocket.Conn, uid uint64, in wsFrame) error {
	send := func(f wsFrame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(f)
	}

	if strings.TrimSpace(in.Content) == "" {
		return send(wsFrame{Type: "error", Message: "content: required"})
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	st, err := h.ChatSvc.SendMessageStream(ctx, uid, in.ConversationID, in.Content, in.Metadata)
	if err != nil {
		return send(wsFrame{Type: "error", Message: wsErrorMessage(ctx, err)})
	}

	convID := st.ConversationID
	if err := send(wsFrame{Type: "meta", ConversationID: &convID, UserMessageID: st.UserMessageID}); err != nil {
		cancel()
		drain(st)
		return err
	}
	for ch := range st.Chunks {
		if err := send(wsFrame{Type: "chunk", Delta: ch}); err != nil {
			// client is gone; stop generation and drop the turn
			cancel()
			drain(st)
			return err
		}
	}
	if res, ok := <-st.Result; ok {
		return send(wsFrame{Type: "done", ConversationID: &res.ConversationID, MessageID: res.MessageID, Summary: res.Summary})
	}
	if err := <-st.Errs; err != nil {
		return send(wsFrame{Type: "error", Message: wsErrorMessage(ctx, err)})
	}
	return nil
}

func drain(st *chat.Stream) {
	for range st.Chunks {
	}
	<-st.Result
	<-st.Errs
}

func wsErrorMessage(ctx context.Context, err error) string {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, chat.ErrConversationNotFound):
		return "conversation not found"
	}
	zerolog.Ctx(ctx).Error().Err(err).Msg("ws exchange failed")
	return "internal error"
}

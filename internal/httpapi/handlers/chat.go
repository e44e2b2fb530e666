package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/common"
)

const sseHeartbeat = 15 * time.Second

type chatReq struct {
	Content        *string        `json:"content" binding:"omitempty,max=32000"`
	ConversationID *uint64        `json:"conversation_id"`
	SearchQuery    *string        `json:"search_query" binding:"omitempty,max=1000"`
	Metadata       map[string]any `json:"metadata"`
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// Chat either runs one exchange (content) or searches past turns
// (search_query). Exactly one of the two must be set.
func (h *Handler) Chat(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req chatReq
	if !bindJSON(c, &req) {
		return
	}
	hasContent, hasQuery := present(req.Content), present(req.SearchQuery)
	if hasContent == hasQuery {
		common.Fail(c, http.StatusBadRequest, 10002, "exactly one of content or search_query is required")
		return
	}
	ctx := c.Request.Context()

	if hasQuery {
		var (
			hits any
			err  error
		)
		if req.ConversationID != nil {
			hits, err = h.ChatSvc.SearchConversation(ctx, uid, *req.ConversationID, *req.SearchQuery)
		} else {
			hits, err = h.ChatSvc.SearchAll(ctx, uid, *req.SearchQuery, 0)
		}
		if err != nil {
			writeError(c, "chat.search", err)
			return
		}
		common.OK(c, gin.H{
			"search_results":  hits,
			"conversation_id": req.ConversationID,
		})
		return
	}

	res, err := h.ChatSvc.Chat(ctx, uid, req.ConversationID, *req.Content, req.Metadata)
	if err != nil {
		writeError(c, "chat", err)
		return
	}
	common.OK(c, res)
}

type streamReq struct {
	Content        string         `json:"content" binding:"required,notblank,max=32000"`
	ConversationID *uint64        `json:"conversation_id"`
	Metadata       map[string]any `json:"metadata"`
}

// ChatStream answers with Server-Sent Events: one "meta" event with the
// ids, "chunk" events, periodic "ping" events, then "done" or "error".
func (h *Handler) ChatStream(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req streamReq
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	st, err := h.ChatSvc.SendMessageStream(ctx, uid, req.ConversationID, req.Content, req.Metadata)
	if err != nil {
		writeError(c, "chat.stream", err)
		return
	}

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		common.Fail(c, http.StatusInternalServerError, 50001, "streaming unsupported")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"type\":\"error\",\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	writeJSON("meta", gin.H{
		"type":            "meta",
		"conversation_id": st.ConversationID,
		"user_message_id": st.UserMessageID,
	})

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	chunks := st.Chunks
	for chunks != nil {
		select {
		case ch, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			writeJSON("chunk", gin.H{"type": "chunk", "delta": ch})
		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})
		case <-ctx.Done():
			// the service sees the same cancellation and drops the turn
			return
		}
	}

	if res, ok := <-st.Result; ok {
		writeJSON("done", gin.H{
			"type":            "done",
			"conversation_id": res.ConversationID,
			"message_id":      res.MessageID,
			"summary":         res.Summary,
		})
		return
	}
	if err := <-st.Errs; err != nil && ctx.Err() == nil {
		zerolog.Ctx(ctx).Error().Err(err).Uint64("conversation_id", st.ConversationID).Msg("stream failed")
		writeJSON("error", gin.H{"type": "error", "message": "internal error"})
	}
}

// ChatAsync stores the user turn and queues the reply as a job. Retrying
// with the same Idempotency-Key returns the original job.
func (h *Handler) ChatAsync(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req streamReq
	if !bindJSON(c, &req) {
		return
	}

	key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	job, created, err := h.ChatSvc.SubmitTurn(c.Request.Context(), h.Publisher, uid, req.ConversationID, req.Content, req.Metadata, key)
	if err != nil {
		writeError(c, "chat.async", err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"code":    0,
		"message": "ok",
		"data": gin.H{
			"job_id":          job.ID,
			"conversation_id": job.ConversationID,
			"status":          job.Status,
		},
	})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), uid, jobID)
	if err != nil {
		writeError(c, "chat.job", err)
		return
	}
	common.OK(c, gin.H{"job": j})
}

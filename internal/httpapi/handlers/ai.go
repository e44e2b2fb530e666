package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-recall/internal/common"
)

type summarizeReq struct {
	ConversationID uint64 `json:"conversation_id" binding:"required"`
}

// Summarize regenerates and stores the summary of a conversation.
func (h *Handler) Summarize(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req summarizeReq
	if !bindJSON(c, &req) {
		return
	}
	summary, err := h.ChatSvc.Summarize(c.Request.Context(), uid, req.ConversationID)
	if err != nil {
		writeError(c, "ai.summarize", err)
		return
	}
	common.OK(c, gin.H{"conversation_id": req.ConversationID, "summary": summary})
}

type suggestionsReq struct {
	ConversationID *uint64 `json:"conversation_id"`
	Context        string  `json:"context" binding:"max=4000"`
}

func (h *Handler) Suggestions(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req suggestionsReq
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.ChatSvc.Suggestions(c.Request.Context(), uid, req.ConversationID, req.Context)
	if err != nil {
		writeError(c, "ai.suggestions", err)
		return
	}
	common.OK(c, gin.H{"suggestions": out})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-recall/internal/chat"
	"github.com/suPer8Hu/chat-recall/internal/common"
)

func (h *Handler) ListConversations(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	items, err := h.ChatSvc.ListConversations(c.Request.Context(), uid)
	if err != nil {
		writeError(c, "conversations.list", err)
		return
	}
	common.OK(c, gin.H{"conversations": items})
}

type createConversationReq struct {
	Title string `json:"title" binding:"max=200"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req createConversationReq
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	conv, err := h.ChatSvc.CreateConversation(c.Request.Context(), uid, req.Title)
	if err != nil {
		writeError(c, "conversations.create", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "ok", "data": conv})
}

func (h *Handler) GetConversation(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", chat.ErrConversationNotFound)
	if !ok {
		return
	}
	conv, msgs, err := h.ChatSvc.GetConversation(c.Request.Context(), uid, id)
	if err != nil {
		writeError(c, "conversations.get", err)
		return
	}
	common.OK(c, conversationDetail{Conversation: conv, Messages: msgs})
}

type conversationDetail struct {
	*chat.Conversation
	Messages []chat.Message `json:"messages"`
}

type renameConversationReq struct {
	Title string `json:"title" binding:"required,notblank,max=200"`
}

func (h *Handler) RenameConversation(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", chat.ErrConversationNotFound)
	if !ok {
		return
	}
	var req renameConversationReq
	if !bindJSON(c, &req) {
		return
	}
	conv, err := h.ChatSvc.RenameConversation(c.Request.Context(), uid, id, req.Title)
	if err != nil {
		writeError(c, "conversations.rename", err)
		return
	}
	common.OK(c, conv)
}

// ArchiveConversation is the soft delete: 204 and the turns stay stored.
func (h *Handler) ArchiveConversation(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", chat.ErrConversationNotFound)
	if !ok {
		return
	}
	if err := h.ChatSvc.ArchiveConversation(c.Request.Context(), uid, id); err != nil {
		writeError(c, "conversations.archive", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", chat.ErrConversationNotFound)
	if !ok {
		return
	}
	if err := h.ChatSvc.DeleteConversation(c.Request.Context(), uid, id); err != nil {
		writeError(c, "conversations.delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", chat.ErrConversationNotFound)
	if !ok {
		return
	}
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, id)
	if err != nil {
		writeError(c, "messages.list", err)
		return
	}
	common.OK(c, gin.H{"conversation_id": id, "messages": msgs})
}

type createMessageReq struct {
	Role     string         `json:"role" binding:"required,chatrole"`
	Content  string         `json:"content" binding:"required,notblank,max=32000"`
	Metadata map[string]any `json:"metadata"`
}

// CreateMessage appends a turn as-is; no reply is generated.
func (h *Handler) CreateMessage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", chat.ErrConversationNotFound)
	if !ok {
		return
	}
	var req createMessageReq
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.ChatSvc.AppendMessage(c.Request.Context(), uid, id, req.Role, req.Content, req.Metadata)
	if err != nil {
		writeError(c, "messages.create", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 0, "message": "ok", "data": msg})
}

func (h *Handler) GetMessage(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", chat.ErrConversationNotFound)
	if !ok {
		return
	}
	mid, ok := pathID(c, "message_id", chat.ErrMessageNotFound)
	if !ok {
		return
	}
	msg, err := h.ChatSvc.GetMessage(c.Request.Context(), uid, id, mid)
	if err != nil {
		writeError(c, "messages.get", err)
		return
	}
	common.OK(c, msg)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-recall/internal/chat"
	"github.com/suPer8Hu/chat-recall/internal/common"
	"github.com/suPer8Hu/chat-recall/internal/config"
	"github.com/suPer8Hu/chat-recall/internal/httpapi/middleware"
	"gorm.io/gorm"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	ChatSvc   *chat.Service
	Publisher chat.JobPublisher
}

// NewHandler wires the handlers to an already-built chat service. A nil
// publisher disables /chat/async/.
func NewHandler(db *gorm.DB, cfg config.Config, svc *chat.Service, pub chat.JobPublisher) *Handler {
	return &Handler{DB: db, Cfg: cfg, ChatSvc: svc, Publisher: pub}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// requireUser fails the request when the auth middleware did not run.
func requireUser(c *gin.Context) (uint64, bool) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}

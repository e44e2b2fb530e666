package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-recall/internal/common"
	"github.com/suPer8Hu/chat-recall/internal/config"
	"github.com/suPer8Hu/chat-recall/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-recall/internal/httpapi/middleware"
	"github.com/suPer8Hu/chat-recall/internal/metrics"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	handlers.RegisterValidators()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// identity
	r.POST("/users/register", h.Register)
	r.POST("/auth/token", h.Token)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/users/me", h.Me)

	// chat
	authGroup.POST("/chat/", h.Chat)
	authGroup.POST("/chat/stream/", h.ChatStream)
	authGroup.GET("/chat/ws", h.ChatWS)
	authGroup.POST("/chat/async/", h.ChatAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)
	authGroup.GET("/search", h.Search)

	// ai helpers
	authGroup.POST("/ai/summarize/", h.Summarize)
	authGroup.POST("/ai/suggestions/", h.Suggestions)

	// conversations
	authGroup.GET("/conversations/", h.ListConversations)
	authGroup.POST("/conversations/", h.CreateConversation)
	authGroup.GET("/conversations/:id", h.GetConversation)
	authGroup.PATCH("/conversations/:id", h.RenameConversation)
	authGroup.DELETE("/conversations/:id", h.DeleteConversation)
	authGroup.POST("/conversations/:id/archive", h.ArchiveConversation)
	authGroup.GET("/conversations/:id/messages/", h.ListMessages)
	authGroup.POST("/conversations/:id/messages/", h.CreateMessage)
	authGroup.GET("/conversations/:id/messages/:message_id", h.GetMessage)

	return r
}

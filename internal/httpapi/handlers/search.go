package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-recall/internal/common"
)

const maxSearchLimit = 50

// Search ranks turns across all of the caller's active conversations.
func (h *Handler) Search(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "q: required")
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			common.Fail(c, http.StatusBadRequest, 10002, "limit: must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	hits, err := h.ChatSvc.SearchAll(c.Request.Context(), uid, q, limit)
	if err != nil {
		writeError(c, "search", err)
		return
	}
	common.OK(c, gin.H{"query": q, "results": hits})
}

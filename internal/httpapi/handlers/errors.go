package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/chat"
	"github.com/suPer8Hu/chat-recall/internal/common"
)

// writeError maps service errors onto the envelope. Anything unexpected is
// logged and reported as 50001 without details.
func writeError(c *gin.Context, op string, err error) {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		common.Fail(c, http.StatusBadRequest, 10002, verr.Error())
	case errors.Is(err, chat.ErrConversationNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "conversation not found")
	case errors.Is(err, chat.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
	case errors.Is(err, chat.ErrMessageNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "message not found")
	case errors.Is(err, chat.ErrEnqueueFailed):
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("op", op).Msg("enqueue failed")
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("op", op).Msg("request failed")
		_ = c.Error(err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

func invalidJSON(c *gin.Context) {
	common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
}

// pathID parses a numeric path parameter; a malformed id cannot name an
// existing resource, so it is reported as not found.
func pathID(c *gin.Context, name string, notFound error) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		writeError(c, name, notFound)
		return 0, false
	}
	return id, true
}

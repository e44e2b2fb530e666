package handlers

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/auth"
	"github.com/suPer8Hu/chat-recall/internal/common"
	"github.com/suPer8Hu/chat-recall/internal/models"
	"gorm.io/gorm"
)

type registerReq struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Username string `json:"username" binding:"omitempty,alphanum,max=32"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// generate a 11 digit random username
func randomUsername11() (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	out := make([]byte, 11)
	for i := 0; i < 11; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		out[i] = letters[n.Int64()]
	}
	return string(out), nil
}

func (h *Handler) usernameTaken(c *gin.Context, username string) (bool, error) {
	var cnt int64
	err := h.DB.WithContext(c.Request.Context()).Model(&models.User{}).Where("username = ?", username).Count(&cnt).Error
	return cnt > 0, err
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var cnt int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		writeError(c, "register", err)
		return
	}
	if cnt > 0 {
		common.Fail(c, http.StatusBadRequest, 10003, "email already registered")
		return
	}

	username := req.Username
	if username != "" {
		taken, err := h.usernameTaken(c, username)
		if err != nil {
			writeError(c, "register", err)
			return
		}
		if taken {
			common.Fail(c, http.StatusBadRequest, 10003, "username already taken")
			return
		}
	} else {
		// generate username to avoid conflict
		for i := 0; i < 5; i++ {
			u, err := randomUsername11()
			if err != nil {
				writeError(c, "register", err)
				return
			}
			taken, err := h.usernameTaken(c, u)
			if err != nil {
				writeError(c, "register", err)
				return
			}
			if !taken {
				username = u
				break
			}
		}
		if username == "" {
			writeError(c, "register", errors.New("failed to allocate username"))
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, "register", err)
		return
	}

	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		// lost a race on the unique index
		zerolog.Ctx(ctx).Warn().Err(err).Msg("create user failed")
		common.Fail(c, http.StatusBadRequest, 10003, "failed to create user (maybe email already exists)")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, h.Cfg.JWTTTL)
	if err != nil {
		writeError(c, "register", err)
		return
	}

	common.OK(c, gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
		"token":    token,
	})
}

type tokenReq struct {
	// Login is an email or a username.
	Login    string `json:"login" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

// Token exchanges credentials for a JWT.
func (h *Handler) Token(c *gin.Context) {
	var req tokenReq
	if !bindJSON(c, &req) {
		return
	}
	login := strings.TrimSpace(req.Login)

	var user models.User
	q := h.DB.WithContext(c.Request.Context())
	if strings.Contains(login, "@") {
		q = q.Where("email = ?", strings.ToLower(login))
	} else {
		q = q.Where("username = ?", login)
	}
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid credentials")
			return
		}
		writeError(c, "token", err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40101, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, h.Cfg.JWTTTL)
	if err != nil {
		writeError(c, "token", err)
		return
	}
	common.OK(c, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int64(h.Cfg.JWTTTL.Seconds()),
	})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		writeError(c, "me", err)
		return
	}
	common.OK(c, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

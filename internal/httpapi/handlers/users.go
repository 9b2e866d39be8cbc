package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/recipe-snap/internal/common"
	"github.com/suPer8Hu/recipe-snap/internal/httpapi/middleware"
	"github.com/suPer8Hu/recipe-snap/internal/users"
)

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	s, err := h.Users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrValidation):
			msg := strings.TrimPrefix(err.Error(), users.ErrValidation.Error()+": ")
			common.Fail(c, http.StatusBadRequest, 10002, msg)
		case errors.Is(err, users.ErrUsernameTaken):
			common.Fail(c, http.StatusConflict, 10003, "username already exists")
		default:
			h.logger(c).Error().Err(err).Msg("register")
			common.Fail(c, http.StatusInternalServerError, 20002, "failed to create user")
		}
		return
	}

	h.logger(c).Info().Str("user_id", s.Profile.ID).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"userId":   s.Profile.ID,
		"username": s.Profile.Username,
		"points":   s.Points,
		"token":    s.Token,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Username == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "username and password required")
		return
	}

	s, err := h.Users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid username or password")
			return
		}
		h.logger(c).Error().Err(err).Msg("login")
		common.Fail(c, http.StatusInternalServerError, 20003, "login failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"userId":   s.Profile.ID,
		"username": s.Profile.Username,
		"points":   s.Points,
		"token":    s.Token,
		"message":  "login successful",
	})
}

// Logout is stateless; clients drop the token.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) CurrentUser(c *gin.Context) {
	uid, _ := middleware.UserID(c)

	p, err := h.Users.Get(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "user not found")
			return
		}
		h.logger(c).Error().Err(err).Msg("get user")
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	bal, err := h.Ledger.GetBalance(c.Request.Context(), uid)
	if err != nil {
		h.ledgerFail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       p.ID,
		"username": p.Username,
		"points":   bal,
	})
}

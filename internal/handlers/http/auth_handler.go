package http

import (
	"net/http"
	"strings"

	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/middleware"
	"reelgate/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users ports.UserService
}

func NewAuthHandler(users ports.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required,max=128"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

type VerifyPasswordRequest struct {
	Password string `json:"password" binding:"required,max=128"`
}

func sessionResponse(s *ports.Session) gin.H {
	return gin.H{
		"user":          s.User.Profile(),
		"access_token":  s.Tokens.AccessToken,
		"refresh_token": s.Tokens.RefreshToken,
		"expires_in":    s.Tokens.ExpiresIn,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	session, err := h.users.Register(c.Request.Context(), ports.RegisterInput{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse(session))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	session, err := h.users.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	session, err := h.users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse(session))
}

// VerifyAdminPassword answers 200 with valid=false for a wrong password. A
// correct one promotes the caller and returns fresh tokens.
func (h *AuthHandler) VerifyAdminPassword(c *gin.Context) {
	var req VerifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	result, err := h.users.VerifyAdminPassword(c.Request.Context(), middleware.ViewerFromContext(c), req.Password)
	if err != nil {
		c.Error(err)
		return
	}

	if !result.Valid {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	body := sessionResponse(result.Session)
	body["valid"] = true
	c.JSON(http.StatusOK, body)
}

package http

import (
	"net/http"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/middleware"
	"reelgate/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	users ports.UserService
}

func NewProfileHandler(users ports.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

func (h *ProfileHandler) GetMe(c *gin.Context) {
	user, err := h.users.GetProfile(c.Request.Context(), middleware.ViewerFromContext(c).UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.ViewerFromContext(c), domain.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

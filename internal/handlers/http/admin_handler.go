package http

import (
	"net/http"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/middleware"
	"reelgate/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the moderation and site management endpoints. Routes
// are mounted behind RequireRole(admin); services check the role again.
type AdminHandler struct {
	videos ports.VideoService
	users  ports.UserService
	site   ports.SiteService
}

func NewAdminHandler(videos ports.VideoService, users ports.UserService, site ports.SiteService) *AdminHandler {
	return &AdminHandler{videos: videos, users: users, site: site}
}

type ApproveRequest struct {
	Publish bool `json:"publish"`
}

type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ThemeRequest struct {
	SiteName   string             `json:"site_name"`
	LogoURL    string             `json:"logo_url"`
	FontFamily string             `json:"font_family"`
	Colors     domain.ThemeColors `json:"colors"`
}

type PageRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Published bool   `json:"published"`
}

type RoleRequest struct {
	Role domain.UserRole `json:"role" binding:"required"`
}

func (h *AdminHandler) ListVideos(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.Error(err)
		return
	}
	videos, err := h.videos.List(c.Request.Context(), middleware.ViewerFromContext(c), filter)
	if err != nil {
		c.Error(err)
		return
	}
	if videos == nil {
		videos = []*domain.Video{}
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
}

func (h *AdminHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errors.NewInvalidInputError("invalid request format"))
			return
		}
	}

	video, err := h.videos.Approve(c.Request.Context(), middleware.ViewerFromContext(c), domain.VideoID(c.Param("id")), req.Publish)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, videoResponse(c, video))
}

func (h *AdminHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("reason is required"))
		return
	}

	video, err := h.videos.Reject(c.Request.Context(), middleware.ViewerFromContext(c), domain.VideoID(c.Param("id")), req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, videoResponse(c, video))
}

func (h *AdminHandler) Publish(c *gin.Context) {
	video, err := h.videos.Publish(c.Request.Context(), middleware.ViewerFromContext(c), domain.VideoID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, videoResponse(c, video))
}

func (h *AdminHandler) Unpublish(c *gin.Context) {
	video, err := h.videos.Unpublish(c.Request.Context(), middleware.ViewerFromContext(c), domain.VideoID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, videoResponse(c, video))
}

func (h *AdminHandler) UpdateTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	theme, err := h.site.UpdateTheme(c.Request.Context(), middleware.ViewerFromContext(c), domain.Theme{
		SiteName:   req.SiteName,
		LogoURL:    req.LogoURL,
		FontFamily: req.FontFamily,
		Colors:     req.Colors,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

func (h *AdminHandler) ResetTheme(c *gin.Context) {
	theme, err := h.site.ResetTheme(c.Request.Context(), middleware.ViewerFromContext(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

func (h *AdminHandler) SavePage(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	page, err := h.site.SavePage(c.Request.Context(), middleware.ViewerFromContext(c), domain.Page{
		Slug:      domain.PageSlug(c.Param("slug")),
		Title:     req.Title,
		Body:      req.Body,
		Published: req.Published,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

func (h *AdminHandler) DeletePage(c *gin.Context) {
	if err := h.site.DeletePage(c.Request.Context(), middleware.ViewerFromContext(c), domain.PageSlug(c.Param("slug"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), middleware.ViewerFromContext(c))
	if err != nil {
		c.Error(err)
		return
	}
	profiles := make([]domain.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles, "count": len(profiles)})
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("role is required"))
		return
	}

	user, err := h.users.SetRole(c.Request.Context(), middleware.ViewerFromContext(c), domain.UserID(c.Param("id")), req.Role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Profile()})
}

package http

import (
	"net/http"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

type SiteHandler struct {
	site ports.SiteService
}

func NewSiteHandler(site ports.SiteService) *SiteHandler {
	return &SiteHandler{site: site}
}

func (h *SiteHandler) GetTheme(c *gin.Context) {
	theme, err := h.site.GetTheme(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

func (h *SiteHandler) ListPages(c *gin.Context) {
	pages, err := h.site.ListPages(c.Request.Context(), middleware.ViewerFromContext(c))
	if err != nil {
		c.Error(err)
		return
	}
	if pages == nil {
		pages = []*domain.Page{}
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

func (h *SiteHandler) GetPage(c *gin.Context) {
	page, err := h.site.GetPage(c.Request.Context(), middleware.ViewerFromContext(c), domain.PageSlug(c.Param("slug")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

func (h *SiteHandler) RenderPage(c *gin.Context) {
	rendered, err := h.site.RenderPage(c.Request.Context(), middleware.ViewerFromContext(c), domain.PageSlug(c.Param("slug")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rendered)
}

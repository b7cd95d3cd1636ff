package services

import (
	"context"
	"fmt"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/pkg/cache"
)

// CachedSiteService wraps SiteService with caching. Page entries are keyed
// by audience because drafts are only visible to admins.
type CachedSiteService struct {
	baseService ports.SiteService
	themes      *cache.Cache[*domain.Theme]
	pages       *cache.Cache[*domain.Page]
	pageLists   *cache.Cache[[]*domain.Page]
	rendered    *cache.Cache[*ports.RenderedPage]
}

// NewCachedSiteService creates a new cached site service
func NewCachedSiteService(baseService ports.SiteService, themeTTL, pageTTL time.Duration) *CachedSiteService {
	return &CachedSiteService{
		baseService: baseService,
		themes:      cache.New[*domain.Theme](themeTTL),
		pages:       cache.New[*domain.Page](pageTTL),
		pageLists:   cache.New[[]*domain.Page](pageTTL),
		rendered:    cache.New[*ports.RenderedPage](pageTTL),
	}
}

func audience(viewer domain.Viewer) string {
	if viewer.IsAdmin() {
		return "admin"
	}
	return "public"
}

func (s *CachedSiteService) GetTheme(ctx context.Context) (*domain.Theme, error) {
	return s.themes.GetOrLoad(ctx, "theme", s.baseService.GetTheme)
}

func (s *CachedSiteService) UpdateTheme(ctx context.Context, viewer domain.Viewer, theme domain.Theme) (*domain.Theme, error) {
	updated, err := s.baseService.UpdateTheme(ctx, viewer, theme)
	if err != nil {
		return nil, err
	}
	s.themes.Clear()
	return updated, nil
}

func (s *CachedSiteService) ResetTheme(ctx context.Context, viewer domain.Viewer) (*domain.Theme, error) {
	theme, err := s.baseService.ResetTheme(ctx, viewer)
	if err != nil {
		return nil, err
	}
	s.themes.Clear()
	return theme, nil
}

func (s *CachedSiteService) ListPages(ctx context.Context, viewer domain.Viewer) ([]*domain.Page, error) {
	return s.pageLists.GetOrLoad(ctx, "pages:"+audience(viewer), func(ctx context.Context) ([]*domain.Page, error) {
		return s.baseService.ListPages(ctx, viewer)
	})
}

func (s *CachedSiteService) GetPage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) (*domain.Page, error) {
	cacheKey := fmt.Sprintf("page:%s:%s", slug, audience(viewer))
	return s.pages.GetOrLoad(ctx, cacheKey, func(ctx context.Context) (*domain.Page, error) {
		return s.baseService.GetPage(ctx, viewer, slug)
	})
}

func (s *CachedSiteService) RenderPage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) (*ports.RenderedPage, error) {
	cacheKey := fmt.Sprintf("page:%s:%s", slug, audience(viewer))
	return s.rendered.GetOrLoad(ctx, cacheKey, func(ctx context.Context) (*ports.RenderedPage, error) {
		return s.baseService.RenderPage(ctx, viewer, slug)
	})
}

func (s *CachedSiteService) SavePage(ctx context.Context, viewer domain.Viewer, page domain.Page) (*domain.Page, error) {
	saved, err := s.baseService.SavePage(ctx, viewer, page)
	if err != nil {
		return nil, err
	}
	s.invalidatePage(saved.Slug)
	return saved, nil
}

func (s *CachedSiteService) DeletePage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) error {
	if err := s.baseService.DeletePage(ctx, viewer, slug); err != nil {
		return err
	}
	s.invalidatePage(slug)
	return nil
}

// Invalidate drops cached entries touched by event. It lets writes made on
// other instances reach this cache before the TTL runs out.
func (s *CachedSiteService) Invalidate(event domain.ChangeEvent) {
	switch event.Collection {
	case domain.CollectionTheme:
		s.themes.Clear()
	case domain.CollectionPages:
		s.invalidatePage(domain.PageSlug(event.DocID))
	}
}

func (s *CachedSiteService) invalidatePage(slug domain.PageSlug) {
	prefix := fmt.Sprintf("page:%s:", slug)
	s.pages.Invalidate(prefix)
	s.rendered.Invalidate(prefix)
	s.pageLists.Clear()
}

// Stop releases the cache janitors.
func (s *CachedSiteService) Stop() {
	s.themes.Stop()
	s.pages.Stop()
	s.pageLists.Stop()
	s.rendered.Stop()
}

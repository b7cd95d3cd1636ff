package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

type siteService struct {
	theme    ports.ThemeRepository
	pages    ports.PageRepository
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	logger   *zap.SugaredLogger
}

func NewSiteService(theme ports.ThemeRepository, pages ports.PageRepository, logger *zap.SugaredLogger) ports.SiteService {
	return &siteService{
		theme:    theme,
		pages:    pages,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
		logger:   logger,
	}
}

// GetTheme returns the default theme until an admin saves one.
func (s *siteService) GetTheme(ctx context.Context) (*domain.Theme, error) {
	theme, err := s.theme.Get(ctx)
	if errors.Is(err, domain.ErrThemeNotFound) {
		def := domain.DefaultTheme()
		return &def, nil
	}
	return theme, err
}

func (s *siteService) UpdateTheme(ctx context.Context, viewer domain.Viewer, theme domain.Theme) (*domain.Theme, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := theme.Validate(); err != nil {
		return nil, err
	}
	theme.UpdatedAt = time.Now().UTC()
	theme.UpdatedBy = viewer.UserID
	if err := s.theme.Save(ctx, &theme); err != nil {
		return nil, err
	}
	s.logger.Infow("Theme updated", "updated_by", viewer.UserID)
	return &theme, nil
}

func (s *siteService) ResetTheme(ctx context.Context, viewer domain.Viewer) (*domain.Theme, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	theme := domain.DefaultTheme()
	theme.UpdatedAt = time.Now().UTC()
	theme.UpdatedBy = viewer.UserID
	if err := s.theme.Save(ctx, &theme); err != nil {
		return nil, err
	}
	s.logger.Infow("Theme reset", "updated_by", viewer.UserID)
	return &theme, nil
}

func (s *siteService) ListPages(ctx context.Context, viewer domain.Viewer) ([]*domain.Page, error) {
	pages, err := s.pages.List(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]*domain.Page, 0, len(pages))
	for _, page := range pages {
		if page.VisibleTo(viewer) {
			visible = append(visible, page)
		}
	}
	return visible, nil
}

func (s *siteService) GetPage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) (*domain.Page, error) {
	page, err := s.pages.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !page.VisibleTo(viewer) {
		return nil, domain.ErrPageNotFound
	}
	return page, nil
}

func (s *siteService) SavePage(ctx context.Context, viewer domain.Viewer, page domain.Page) (*domain.Page, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	page.UpdatedAt = time.Now().UTC()
	page.UpdatedBy = viewer.UserID

	created, err := s.pages.Save(ctx, &page)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("Page saved",
		"slug", page.Slug,
		"created", created,
		"published", page.Published,
	)
	return &page, nil
}

func (s *siteService) DeletePage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) error {
	if !viewer.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.pages.Delete(ctx, slug); err != nil {
		return err
	}
	s.logger.Infow("Page deleted", "slug", slug)
	return nil
}

// RenderPage converts the markdown body to HTML and strips anything outside
// the user generated content policy.
func (s *siteService) RenderPage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) (*ports.RenderedPage, error) {
	page, err := s.GetPage(ctx, viewer, slug)
	if err != nil {
		return nil, err
	}
	html, err := s.render(page.Body)
	if err != nil {
		return nil, err
	}
	return &ports.RenderedPage{Page: page, HTML: html}, nil
}

func (s *siteService) render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return string(s.policy.SanitizeBytes(buf.Bytes())), nil
}

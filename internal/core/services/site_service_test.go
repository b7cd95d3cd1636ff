package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSiteService(t *testing.T) (ports.SiteService, ports.PageRepository) {
	t.Helper()
	pages := memory.NewMemoryPageRepository()
	return NewSiteService(memory.NewMemoryThemeRepository(), pages, nopLogger(t)), pages
}

func TestSiteService_Theme(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSiteService(t)

	theme, err := svc.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTheme().Colors, theme.Colors)

	custom := domain.DefaultTheme()
	custom.SiteName = "Clip Club"
	custom.Colors.Primary = "#123"

	_, err = svc.UpdateTheme(ctx, alice, custom)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	saved, err := svc.UpdateTheme(ctx, admin, custom)
	require.NoError(t, err)
	assert.Equal(t, admin.UserID, saved.UpdatedBy)

	theme, err = svc.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Clip Club", theme.SiteName)

	custom.Colors.Accent = "orange"
	_, err = svc.UpdateTheme(ctx, admin, custom)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "colors.accent", verr.Field)

	reset, err := svc.ResetTheme(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTheme().SiteName, reset.SiteName)
}

func TestSiteService_Pages(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSiteService(t)

	_, err := svc.SavePage(ctx, alice, domain.Page{Slug: "about", Title: "About"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.SavePage(ctx, admin, domain.Page{Slug: "About Us", Title: "About"})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "slug", verr.Field)

	_, err = svc.SavePage(ctx, admin, domain.Page{Slug: "about", Title: "About", Body: "# Hi", Published: true})
	require.NoError(t, err)
	_, err = svc.SavePage(ctx, admin, domain.Page{Slug: "draft", Title: "Draft", Body: "soon"})
	require.NoError(t, err)

	public, err := svc.ListPages(ctx, guest)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, domain.PageSlug("about"), public[0].Slug)

	all, err := svc.ListPages(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.GetPage(ctx, alice, "draft")
	assert.ErrorIs(t, err, domain.ErrPageNotFound)
	_, err = svc.GetPage(ctx, admin, "draft")
	assert.NoError(t, err)

	require.NoError(t, svc.DeletePage(ctx, admin, "draft"))
	assert.ErrorIs(t, svc.DeletePage(ctx, admin, "draft"), domain.ErrPageNotFound)
}

func TestSiteService_RenderPageSanitizes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSiteService(t)

	body := "# Welcome\n\nSee [docs](https://example.com).\n\n<script>alert('x')</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	_, err := svc.SavePage(ctx, admin, domain.Page{Slug: "welcome", Title: "Welcome", Body: body, Published: true})
	require.NoError(t, err)

	rendered, err := svc.RenderPage(ctx, guest, "welcome")
	require.NoError(t, err)
	assert.Contains(t, rendered.HTML, "<h1")
	assert.Contains(t, rendered.HTML, `href="https://example.com"`)
	assert.Contains(t, rendered.HTML, "<table>")
	assert.NotContains(t, rendered.HTML, "<script")
	assert.Equal(t, domain.PageSlug("welcome"), rendered.Page.Slug)
}

type countingSiteService struct {
	ports.SiteService
	themeLoads int
	pageLoads  int
}

func (c *countingSiteService) GetTheme(ctx context.Context) (*domain.Theme, error) {
	c.themeLoads++
	return c.SiteService.GetTheme(ctx)
}

func (c *countingSiteService) GetPage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) (*domain.Page, error) {
	c.pageLoads++
	return c.SiteService.GetPage(ctx, viewer, slug)
}

func TestCachedSiteService(t *testing.T) {
	ctx := context.Background()
	base, _ := newSiteService(t)
	counting := &countingSiteService{SiteService: base}
	cached := NewCachedSiteService(counting, time.Minute, time.Minute)
	defer cached.Stop()

	_, err := cached.GetTheme(ctx)
	require.NoError(t, err)
	_, err = cached.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.themeLoads)

	custom := domain.DefaultTheme()
	custom.SiteName = "Updated"
	_, err = cached.UpdateTheme(ctx, admin, custom)
	require.NoError(t, err)

	theme, err := cached.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Updated", theme.SiteName)
	assert.Equal(t, 2, counting.themeLoads)

	_, err = cached.SavePage(ctx, admin, domain.Page{Slug: "faq", Title: "FAQ", Published: false})
	require.NoError(t, err)

	// Drafts are cached per audience, so an admin hit must not leak.
	_, err = cached.GetPage(ctx, admin, "faq")
	require.NoError(t, err)
	_, err = cached.GetPage(ctx, guest, "faq")
	assert.ErrorIs(t, err, domain.ErrPageNotFound)

	_, err = cached.SavePage(ctx, admin, domain.Page{Slug: "faq", Title: "FAQ", Published: true})
	require.NoError(t, err)
	page, err := cached.GetPage(ctx, guest, "faq")
	require.NoError(t, err)
	assert.True(t, page.Published)

	loads := counting.pageLoads
	cached.Invalidate(domain.ChangeEvent{Collection: domain.CollectionPages, DocID: "faq"})
	_, err = cached.GetPage(ctx, guest, "faq")
	require.NoError(t, err)
	assert.Equal(t, loads+1, counting.pageLoads)
}

package memory

import (
	"context"
	"sort"
	"sync"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
)

type MemoryThemeRepository struct {
	theme *domain.Theme
	mu    sync.RWMutex
}

func NewMemoryThemeRepository() ports.ThemeRepository {
	return &MemoryThemeRepository{}
}

func (r *MemoryThemeRepository) Get(ctx context.Context) (*domain.Theme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.theme == nil {
		return nil, domain.ErrThemeNotFound
	}
	copied := *r.theme
	return &copied, nil
}

func (r *MemoryThemeRepository) Save(ctx context.Context, theme *domain.Theme) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *theme
	r.theme = &copied
	return nil
}

type MemoryPageRepository struct {
	pages map[domain.PageSlug]*domain.Page
	mu    sync.RWMutex
}

func NewMemoryPageRepository() ports.PageRepository {
	return &MemoryPageRepository{
		pages: make(map[domain.PageSlug]*domain.Page),
	}
}

func (r *MemoryPageRepository) Get(ctx context.Context, slug domain.PageSlug) (*domain.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	page, exists := r.pages[slug]
	if !exists {
		return nil, domain.ErrPageNotFound
	}
	copied := *page
	return &copied, nil
}

func (r *MemoryPageRepository) Save(ctx context.Context, page *domain.Page) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.pages[page.Slug]
	copied := *page
	r.pages[page.Slug] = &copied
	return !exists, nil
}

func (r *MemoryPageRepository) Delete(ctx context.Context, slug domain.PageSlug) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pages[slug]; !exists {
		return domain.ErrPageNotFound
	}
	delete(r.pages, slug)
	return nil
}

// List returns pages ordered by slug.
func (r *MemoryPageRepository) List(ctx context.Context) ([]*domain.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pages := make([]*domain.Page, 0, len(r.pages))
	for _, page := range r.pages {
		copied := *page
		pages = append(pages, &copied)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Slug < pages[j].Slug
	})
	return pages, nil
}

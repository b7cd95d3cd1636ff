package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
)

type MemoryVideoRepository struct {
	videos map[domain.VideoID]*domain.Video
	mu     sync.RWMutex
}

func NewMemoryVideoRepository() ports.VideoRepository {
	return &MemoryVideoRepository{
		videos: make(map[domain.VideoID]*domain.Video),
	}
}

func (r *MemoryVideoRepository) Create(ctx context.Context, video *domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[video.ID]; exists {
		return fmt.Errorf("video already exists: %s", video.ID)
	}

	r.videos[video.ID] = cloneVideo(video)
	return nil
}

func (r *MemoryVideoRepository) GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, exists := r.videos[id]
	if !exists {
		return nil, domain.ErrVideoNotFound
	}

	return cloneVideo(video), nil
}

func (r *MemoryVideoRepository) Update(ctx context.Context, video *domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[video.ID]; !exists {
		return domain.ErrVideoNotFound
	}

	r.videos[video.ID] = cloneVideo(video)
	return nil
}

func (r *MemoryVideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[id]; !exists {
		return domain.ErrVideoNotFound
	}

	delete(r.videos, id)
	return nil
}

func (r *MemoryVideoRepository) List(ctx context.Context, filter domain.VideoFilter) ([]*domain.Video, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	matched := make([]*domain.Video, 0, len(r.videos))
	for _, video := range r.videos {
		if filter.Matches(video) {
			matched = append(matched, video)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []*domain.Video{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*domain.Video, 0, end-filter.Offset)
	for _, video := range matched[filter.Offset:end] {
		page = append(page, cloneVideo(video))
	}
	return page, nil
}

func cloneVideo(v *domain.Video) *domain.Video {
	c := *v
	if v.Tags != nil {
		c.Tags = append([]string(nil), v.Tags...)
	}
	if v.ReviewedAt != nil {
		t := *v.ReviewedAt
		c.ReviewedAt = &t
	}
	if v.PublishedAt != nil {
		t := *v.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

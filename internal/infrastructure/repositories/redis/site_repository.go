package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisThemeRepository struct {
	client *redis.Client
}

func NewRedisThemeRepository(client *redis.Client) ports.ThemeRepository {
	return &RedisThemeRepository{client: client}
}

func (r *RedisThemeRepository) Get(ctx context.Context) (*domain.Theme, error) {
	data, err := r.client.Get(ctx, docKey(domain.CollectionTheme, domain.ThemeDocID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrThemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme from Redis: %w", err)
	}

	var theme domain.Theme
	if err := json.Unmarshal(data, &theme); err != nil {
		return nil, fmt.Errorf("failed to unmarshal theme: %w", err)
	}
	return &theme, nil
}

func (r *RedisThemeRepository) Save(ctx context.Context, theme *domain.Theme) error {
	data, err := json.Marshal(theme)
	if err != nil {
		return fmt.Errorf("failed to marshal theme: %w", err)
	}
	if err := r.client.Set(ctx, docKey(domain.CollectionTheme, domain.ThemeDocID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save theme in Redis: %w", err)
	}
	return nil
}

type RedisPageRepository struct {
	client *redis.Client
}

func NewRedisPageRepository(client *redis.Client) ports.PageRepository {
	return &RedisPageRepository{client: client}
}

func (r *RedisPageRepository) pageKey(slug domain.PageSlug) string {
	return docKey(domain.CollectionPages, string(slug))
}

func (r *RedisPageRepository) Get(ctx context.Context, slug domain.PageSlug) (*domain.Page, error) {
	data, err := r.client.Get(ctx, r.pageKey(slug)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page from Redis: %w", err)
	}

	var page domain.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page: %w", err)
	}
	return &page, nil
}

func (r *RedisPageRepository) Save(ctx context.Context, page *domain.Page) (bool, error) {
	data, err := json.Marshal(page)
	if err != nil {
		return false, fmt.Errorf("failed to marshal page: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.pageKey(page.Slug), data, 0)
	added := pipe.SAdd(ctx, pageIndexKey(), string(page.Slug))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to save page in Redis: %w", err)
	}
	return added.Val() == 1, nil
}

func (r *RedisPageRepository) Delete(ctx context.Context, slug domain.PageSlug) error {
	pipe := r.client.TxPipeline()
	deleted := pipe.Del(ctx, r.pageKey(slug))
	pipe.SRem(ctx, pageIndexKey(), string(slug))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete page from Redis: %w", err)
	}
	if deleted.Val() == 0 {
		return domain.ErrPageNotFound
	}
	return nil
}

// List returns pages ordered by slug.
func (r *RedisPageRepository) List(ctx context.Context) ([]*domain.Page, error) {
	slugs, err := r.client.SMembers(ctx, pageIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read page index: %w", err)
	}
	sort.Strings(slugs)

	pages := make([]*domain.Page, 0, len(slugs))
	for _, slug := range slugs {
		page, err := r.Get(ctx, domain.PageSlug(slug))
		if err == domain.ErrPageNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

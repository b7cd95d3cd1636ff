package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisVideoRepository struct {
	client *redis.Client
}

func NewRedisVideoRepository(client *redis.Client) ports.VideoRepository {
	return &RedisVideoRepository{client: client}
}

func (r *RedisVideoRepository) videoKey(id domain.VideoID) string {
	return docKey(domain.CollectionVideos, string(id))
}

func (r *RedisVideoRepository) Create(ctx context.Context, video *domain.Video) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.videoKey(video.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set video in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("video already exists: %s", video.ID)
	}

	score := float64(video.CreatedAt.UnixNano())
	member := string(video.ID)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, videoIndexKey(), redis.Z{Score: score, Member: member})
	pipe.ZAdd(ctx, videoStatusKey(video.Status), redis.Z{Score: score, Member: member})
	pipe.ZAdd(ctx, videoUploaderKey(video.UploaderID), redis.Z{Score: score, Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index video: %w", err)
	}

	return nil
}

func (r *RedisVideoRepository) GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	data, err := r.client.Get(ctx, r.videoKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video from Redis: %w", err)
	}

	var video domain.Video
	if err := json.Unmarshal(data, &video); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}
	return &video, nil
}

// maxTxAttempts bounds the optimistic retries of Update and Delete when
// another writer touches the same document between WATCH and EXEC.
const maxTxAttempts = 10

// watched runs fn inside WATCH on the document key, retrying when the key
// changed before the transaction committed.
func (r *RedisVideoRepository) watched(ctx context.Context, id domain.VideoID, fn func(tx *redis.Tx, existing *domain.Video) error) error {
	key := r.videoKey(id)
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return domain.ErrVideoNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get video from Redis: %w", err)
			}
			var existing domain.Video
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("failed to unmarshal video: %w", err)
			}
			return fn(tx, &existing)
		}, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("video %s kept changing during update", id)
}

func (r *RedisVideoRepository) Update(ctx context.Context, video *domain.Video) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	member := string(video.ID)
	return r.watched(ctx, video.ID, func(tx *redis.Tx, existing *domain.Video) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.videoKey(video.ID), data, 0)
			if existing.Status != video.Status {
				pipe.ZRem(ctx, videoStatusKey(existing.Status), member)
				pipe.ZAdd(ctx, videoStatusKey(video.Status), redis.Z{
					Score:  float64(existing.CreatedAt.UnixNano()),
					Member: member,
				})
			}
			return nil
		})
		return err
	})
}

func (r *RedisVideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	member := string(id)
	return r.watched(ctx, id, func(tx *redis.Tx, existing *domain.Video) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.videoKey(id))
			pipe.ZRem(ctx, videoIndexKey(), member)
			pipe.ZRem(ctx, videoStatusKey(existing.Status), member)
			pipe.ZRem(ctx, videoUploaderKey(existing.UploaderID), member)
			return nil
		})
		return err
	})
}

// List reads ids from the narrowest sorted set. When both filters are set
// the uploader set is scanned and the status checked per document. Every
// document is checked against the filter, so an index entry left behind
// by a failed write never leaks a clip into the wrong listing.
func (r *RedisVideoRepository) List(ctx context.Context, filter domain.VideoFilter) ([]*domain.Video, error) {
	filter = filter.Normalize()

	indexKey := videoIndexKey()
	switch {
	case filter.UploaderID != "":
		indexKey = videoUploaderKey(filter.UploaderID)
	case filter.Status != "":
		indexKey = videoStatusKey(filter.Status)
	}
	needsScan := filter.UploaderID != "" && filter.Status != ""

	start, stop := int64(filter.Offset), int64(filter.Offset+filter.Limit-1)
	if needsScan {
		start, stop = 0, -1
	}

	ids, err := r.client.ZRevRange(ctx, indexKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read video index: %w", err)
	}

	videos, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	matched := make([]*domain.Video, 0, len(videos))
	for _, video := range videos {
		if filter.Matches(video) {
			matched = append(matched, video)
		}
	}
	if !needsScan {
		return matched, nil
	}
	if filter.Offset >= len(matched) {
		return []*domain.Video{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

func (r *RedisVideoRepository) load(ctx context.Context, ids []string) ([]*domain.Video, error) {
	videos := make([]*domain.Video, 0, len(ids))
	if len(ids) == 0 {
		return videos, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.videoKey(domain.VideoID(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load videos: %w", err)
	}

	for _, value := range values {
		// Skip ids whose document vanished between the two reads.
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var video domain.Video
		if err := json.Unmarshal([]byte(raw), &video); err != nil {
			return nil, fmt.Errorf("failed to unmarshal video: %w", err)
		}
		videos = append(videos, &video)
	}
	return videos, nil
}

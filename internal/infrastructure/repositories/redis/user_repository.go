package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/pkg/utils"

	"github.com/redis/go-redis/v9"
)

type RedisUserRepository struct {
	client *redis.Client
}

func NewRedisUserRepository(client *redis.Client) ports.UserRepository {
	return &RedisUserRepository{client: client}
}

func (r *RedisUserRepository) userKey(id domain.UserID) string {
	return docKey(domain.CollectionUsers, string(id))
}

// Create claims the username with HSETNX before writing the document so two
// concurrent registrations cannot both succeed.
func (r *RedisUserRepository) Create(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	name := utils.NormalizeUsername(user.Username)
	claimed, err := r.client.HSetNX(ctx, usernamesKey(), name, string(user.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve username: %w", err)
	}
	if !claimed {
		return domain.ErrUsernameTaken
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.userKey(user.ID), data, 0)
	pipe.ZAdd(ctx, userIndexKey(), redis.Z{
		Score:  float64(user.CreatedAt.UnixNano()),
		Member: string(user.ID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		r.client.HDel(ctx, usernamesKey(), name)
		return fmt.Errorf("failed to store user: %w", err)
	}

	return nil
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	data, err := r.client.Get(ctx, r.userKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user from Redis: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *RedisUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	id, err := r.client.HGet(ctx, usernamesKey(), utils.NormalizeUsername(username)).Result()
	if err == redis.Nil {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}
	return r.GetByID(ctx, domain.UserID(id))
}

// Update replaces the stored user. Usernames are immutable.
func (r *RedisUserRepository) Update(ctx context.Context, user *domain.User) error {
	existing, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}

	copied := *user
	copied.Username = existing.Username
	data, err := json.Marshal(&copied)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := r.client.Set(ctx, r.userKey(user.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update user in Redis: %w", err)
	}
	return nil
}

func (r *RedisUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ids, err := r.client.ZRevRange(ctx, userIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user index: %w", err)
	}

	users := make([]*domain.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.userKey(domain.UserID(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var user domain.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user: %w", err)
		}
		users = append(users, &user)
	}
	return users, nil
}

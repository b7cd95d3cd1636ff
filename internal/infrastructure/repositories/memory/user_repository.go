package memory

import (
	"context"
	"sort"
	"sync"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/pkg/utils"
)

type MemoryUserRepository struct {
	users      map[domain.UserID]*domain.User
	byUsername map[string]domain.UserID
	mu         sync.RWMutex
}

func NewMemoryUserRepository() ports.UserRepository {
	return &MemoryUserRepository{
		users:      make(map[domain.UserID]*domain.User),
		byUsername: make(map[string]domain.UserID),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := utils.NormalizeUsername(user.Username)
	if _, taken := r.byUsername[name]; taken {
		return domain.ErrUsernameTaken
	}

	copied := *user
	r.users[user.ID] = &copied
	r.byUsername[name] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byUsername[utils.NormalizeUsername(username)]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	copied := *r.users[id]
	return &copied, nil
}

// Update replaces the stored user. Usernames are immutable.
func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.users[user.ID]
	if !exists {
		return domain.ErrUserNotFound
	}

	copied := *user
	copied.Username = existing.Username
	r.users[user.ID] = &copied
	return nil
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

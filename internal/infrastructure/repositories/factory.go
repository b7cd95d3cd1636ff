package repositories

import (
	"context"

	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/repositories/memory"
	"reelgate/internal/infrastructure/repositories/notify"
	redisrepo "reelgate/internal/infrastructure/repositories/redis"
	"reelgate/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// Repositories is the full set of document collections.
type Repositories struct {
	Videos ports.VideoRepository
	Users  ports.UserRepository
	Theme  ports.ThemeRepository
	Pages  ports.PageRepository
}

// NewRepositoryFactory connects to Redis when enabled. An unreachable Redis
// downgrades to memory repositories with a warning.
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(redisrepo.ClientConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory
}

// NewRepositoryFactoryWithClient uses an already connected client.
func NewRepositoryFactoryWithClient(client *redis.Client, logger *zap.SugaredLogger) *RepositoryFactory {
	return &RepositoryFactory{
		useRedis:    client != nil,
		redisClient: client,
		logger:      logger,
	}
}

func (f *RepositoryFactory) redisReady() bool {
	return f.useRedis && f.redisClient != nil
}

func (f *RepositoryFactory) CreateVideoRepository() ports.VideoRepository {
	if f.redisReady() {
		return redisrepo.NewRedisVideoRepository(f.redisClient)
	}
	return memory.NewMemoryVideoRepository()
}

func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	if f.redisReady() {
		return redisrepo.NewRedisUserRepository(f.redisClient)
	}
	return memory.NewMemoryUserRepository()
}

func (f *RepositoryFactory) CreateThemeRepository() ports.ThemeRepository {
	if f.redisReady() {
		return redisrepo.NewRedisThemeRepository(f.redisClient)
	}
	return memory.NewMemoryThemeRepository()
}

func (f *RepositoryFactory) CreatePageRepository() ports.PageRepository {
	if f.redisReady() {
		return redisrepo.NewRedisPageRepository(f.redisClient)
	}
	return memory.NewMemoryPageRepository()
}

// CreateAll builds every repository. With a non-nil publisher each one is
// wrapped so its writes reach live subscribers.
func (f *RepositoryFactory) CreateAll(publisher ports.ChangePublisher) Repositories {
	repos := Repositories{
		Videos: f.CreateVideoRepository(),
		Users:  f.CreateUserRepository(),
		Theme:  f.CreateThemeRepository(),
		Pages:  f.CreatePageRepository(),
	}
	if publisher == nil {
		return repos
	}
	return Repositories{
		Videos: notify.NewVideoRepository(repos.Videos, publisher, f.logger),
		Users:  notify.NewUserRepository(repos.Users, publisher, f.logger),
		Theme:  notify.NewThemeRepository(repos.Theme, publisher, f.logger),
		Pages:  notify.NewPageRepository(repos.Pages, publisher, f.logger),
	}
}

// UsingRedis reports whether repositories are backed by Redis.
func (f *RepositoryFactory) UsingRedis() bool {
	return f.redisReady()
}

// RedisClient returns the shared client, or nil with memory repositories.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.redisReady() {
		return nil
	}
	return f.redisClient
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisReady() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

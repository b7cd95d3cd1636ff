package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelgate/pkg/tracing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

type ClientConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects, traces every command and brings the schema up
// to date. The client is closed again when any step fails.
func NewRedisClient(cfg ClientConfig, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  connectTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	client.AddHook(tracingHook{})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}
	if err := Migrate(ctx, client, logger); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if logger != nil {
		logger.Infow("Connected to Redis", "address", cfg.Address, "db", cfg.DB, "pool_size", cfg.PoolSize)
	}
	return client, nil
}

// tracingHook opens a span per command and per pipeline. A missing key is
// an answer, not a failure.
type tracingHook struct{}

func (tracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (tracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := tracing.TraceRedis(ctx, cmd.Name(), 1)
		defer span.End()

		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			tracing.RecordError(ctx, err)
		}
		return err
	}
}

func (tracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := tracing.TraceRedis(ctx, "pipeline", len(cmds))
		defer span.End()

		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			tracing.RecordError(ctx, err)
		}
		return err
	}
}

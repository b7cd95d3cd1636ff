package main

import (
	"fmt"

	"reelgate/internal/infrastructure/realtime"
	"reelgate/internal/infrastructure/repositories"
	"reelgate/pkg/config"
	"reelgate/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// store is the server's document store as seen from the CLI. Writes go
// through the change bus so running servers refresh their subscribers.
type store struct {
	cfg     *config.Config
	repos   repositories.Repositories
	factory *repositories.RepositoryFactory
	log     *zap.SugaredLogger
}

func openStore(cmd *cobra.Command) (*store, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if !cfg.Redis.Enabled {
		return nil, fmt.Errorf("%s needs redis.enabled: memory repositories do not outlive this process", cmd.Name())
	}

	log := logger.New("warn").Sugar()
	factory := repositories.NewRepositoryFactory(cfg, log)
	client := factory.RedisClient()
	if client == nil {
		_ = factory.Close()
		return nil, fmt.Errorf("redis at %s is unreachable", cfg.Redis.Address)
	}

	bus := realtime.NewEventBus(client, "reelgatectl-"+uuid.NewString(), log)
	return &store{
		cfg:     cfg,
		repos:   factory.CreateAll(bus),
		factory: factory,
		log:     log,
	}, nil
}

func (s *store) Close() error {
	return s.factory.Close()
}

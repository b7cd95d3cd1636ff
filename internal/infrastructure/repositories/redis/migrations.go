package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"reelgate/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schemaVersionKey = keyPrefix + "schema:version"

// Migration represents a schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	migrations := getMigrations()
	target := migrations[len(migrations)-1].Version

	if currentVersion >= target {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", target,
			)
		}
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration",
				"version", migration.Version,
				"name", migration.Name,
			)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed",
			"final_version", target,
		)
	}

	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "initial",
			// Collections are created lazily, nothing to set up.
			Up: func(ctx context.Context, client *redis.Client) error {
				return nil
			},
		},
		{
			Version: 2,
			Name:    "video secondary indexes",
			Up:      rebuildVideoIndexes,
		},
	}
}

// rebuildVideoIndexes derives the status and uploader sorted sets from the
// documents listed in the main video index.
func rebuildVideoIndexes(ctx context.Context, client *redis.Client) error {
	ids, err := client.ZRange(ctx, videoIndexKey(), 0, -1).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		data, err := client.Get(ctx, docKey(domain.CollectionVideos, id)).Bytes()
		if err == redis.Nil {
			client.ZRem(ctx, videoIndexKey(), id)
			continue
		}
		if err != nil {
			return err
		}

		var video domain.Video
		if err := json.Unmarshal(data, &video); err != nil {
			return fmt.Errorf("video %s: %w", id, err)
		}

		score := float64(video.CreatedAt.UnixNano())
		pipe := client.TxPipeline()
		pipe.ZAdd(ctx, videoStatusKey(video.Status), redis.Z{Score: score, Member: id})
		pipe.ZAdd(ctx, videoUploaderKey(video.UploaderID), redis.Z{Score: score, Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

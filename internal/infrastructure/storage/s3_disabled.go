//go:build !s3

package storage

import (
	"context"
	"fmt"

	"reelgate/internal/core/ports"
	"reelgate/pkg/config"
)

func newS3FromConfig(ctx context.Context, cfg *config.Config) (ports.ObjectStorage, error) {
	return nil, fmt.Errorf("storage.backend %q requires a binary built with -tags s3", config.StorageBackendS3)
}

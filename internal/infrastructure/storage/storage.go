// Package storage keeps uploaded clip files on the local filesystem or in
// an S3 bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"reelgate/internal/core/ports"
	"reelgate/pkg/config"
	"reelgate/pkg/tracing"
)

// NewFromConfig opens the backend named by storage.backend.
func NewFromConfig(ctx context.Context, cfg *config.Config) (ports.ObjectStorage, error) {
	var (
		store ports.ObjectStorage
		err   error
	)
	switch cfg.Storage.Backend {
	case config.StorageBackendFile, "":
		store, err = NewFileStorage(cfg.Storage.Path)
	case config.StorageBackendS3:
		store, err = newS3FromConfig(ctx, cfg)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Traced(store), nil
}

// cleanKey normalizes a slash separated key and rejects keys that would
// leave the storage root.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	if strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("object key %q escapes the storage root", key)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

type tracedStorage struct {
	inner ports.ObjectStorage
}

// Traced wraps store so every call opens a span.
func Traced(store ports.ObjectStorage) ports.ObjectStorage {
	return &tracedStorage{inner: store}
}

func (s *tracedStorage) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	ctx, span := tracing.TraceStorage(ctx, "save", key)
	defer span.End()

	n, err := s.inner.Save(ctx, key, r)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return n, err
}

func (s *tracedStorage) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, span := tracing.TraceStorage(ctx, "load", key)
	defer span.End()

	rc, err := s.inner.Load(ctx, key)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return rc, err
}

func (s *tracedStorage) Delete(ctx context.Context, key string) error {
	ctx, span := tracing.TraceStorage(ctx, "delete", key)
	defer span.End()

	err := s.inner.Delete(ctx, key)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

func (s *tracedStorage) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracing.TraceStorage(ctx, "exists", key)
	defer span.End()

	ok, err := s.inner.Exists(ctx, key)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return ok, err
}

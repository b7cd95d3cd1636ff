//go:build s3

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"reelgate/internal/core/domain"
	"reelgate/pkg/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage stores objects in an S3 bucket under an optional prefix.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Storage(client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func newS3FromConfig(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Storage.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Storage.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Storage(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket, cfg.Storage.Prefix), nil
}

func (s *S3Storage) key(name string) (string, error) {
	cleaned, err := cleanKey(name)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return s.prefix + "/" + cleaned, nil
}

// Save spools the body to a temp file so the upload has a known length and
// a seekable body.
func (s *S3Storage) Save(ctx context.Context, name string, data io.Reader) (int64, error) {
	key, err := s.key(name)
	if err != nil {
		return 0, err
	}

	spool, err := os.CreateTemp("", "reelgate-s3-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	n, err := io.Copy(spool, data)
	if err != nil {
		return n, fmt.Errorf("failed to read data: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return n, fmt.Errorf("failed to rewind spool file: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(n),
	})
	if err != nil {
		return n, fmt.Errorf("failed to upload to S3: %w", err)
	}
	return n, nil
}

func (s *S3Storage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	key, err := s.key(name)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	return result.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	key, err := s.key(name)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (s *S3Storage) Exists(ctx context.Context, name string) (bool, error) {
	key, err := s.key(name)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object in S3: %w", err)
	}
	return true, nil
}

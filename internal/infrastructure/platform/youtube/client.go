// Package youtube publishes clips through the YouTube Data API v3.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/pkg/circuitbreaker"
	"reelgate/pkg/config"
	"reelgate/pkg/retry"
	"reelgate/pkg/tracing"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const Name = "youtube"

type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// TokenURL overrides the Google token endpoint.
	TokenURL string
	// Endpoint overrides the API base URL. Must end with a slash.
	Endpoint      string
	PrivacyStatus string
	CategoryID    string
	ChunkSize     int
	Timeout       time.Duration

	Retry   retry.Config
	Breaker circuitbreaker.Config

	// HTTPClient is the base client used for both token refresh and API
	// calls. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// ConfigFromApp builds a Config from the platform section.
func ConfigFromApp(cfg *config.Config) Config {
	p := cfg.Platform

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = p.Retry.MaxAttempts
	retryCfg.InitialDelay = p.Retry.InitialDelay
	retryCfg.MaxDelay = p.Retry.MaxDelay

	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.FailureThreshold = p.CircuitBreaker.FailureThreshold
	breakerCfg.SuccessThreshold = p.CircuitBreaker.SuccessThreshold
	breakerCfg.Timeout = p.CircuitBreaker.Timeout

	return Config{
		ClientID:      p.ClientID,
		ClientSecret:  p.ClientSecret,
		RefreshToken:  p.RefreshToken,
		TokenURL:      p.TokenURL,
		Endpoint:      p.Endpoint,
		PrivacyStatus: p.PrivacyStatus,
		CategoryID:    p.CategoryID,
		ChunkSize:     p.ChunkSize,
		Timeout:       p.Timeout,
		Retry:         retryCfg,
		Breaker:       breakerCfg,
	}
}

// Metrics receives per-call outcomes.
type Metrics interface {
	RecordPlatformOperation(platform, operation, outcome string, duration time.Duration)
	SetCircuitBreakerState(name string, state int)
}

type nopMetrics struct{}

func (nopMetrics) RecordPlatformOperation(string, string, string, time.Duration) {}
func (nopMetrics) SetCircuitBreakerState(string, int)                            {}

// Client implements ports.VideoPlatform.
type Client struct {
	cfg     Config
	service *youtube.Service
	breaker *circuitbreaker.CircuitBreaker
	metrics Metrics
	logger  *zap.SugaredLogger
}

var _ ports.VideoPlatform = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, metrics Metrics, logger *zap.SugaredLogger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("youtube client id, secret and refresh token are required")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			youtube.YoutubeUploadScope,
			youtube.YoutubeScope,
		},
	}
	if cfg.TokenURL != "" {
		oauthCfg.Endpoint.TokenURL = cfg.TokenURL
	}

	// Refreshes outlive any single request, so the token source gets its
	// own context carrying only the base HTTP client.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.HTTPClient)
	source := oauth2.ReuseTokenSource(nil, oauthCfg.TokenSource(tokenCtx, &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}))

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(tokenCtx, source))}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	cfg.Retry.ShouldRetry = retryable
	cfg.Breaker.IsFailure = func(err error) bool {
		return Classify(err) == domain.PlatformUnavailable
	}

	c := &Client{
		cfg:     cfg,
		service: service,
		breaker: circuitbreaker.New(cfg.Breaker),
		metrics: metrics,
		logger:  logger,
	}
	c.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		c.metrics.SetCircuitBreakerState(Name, int(to))
		c.logger.Warnw("YouTube circuit breaker changed state",
			"from", from.String(),
			"to", to.String(),
		)
	})

	logger.Infow("YouTube client initialized",
		"endpoint", service.BasePath,
		"privacy_status", cfg.PrivacyStatus,
		"chunk_size", cfg.ChunkSize,
	)
	return c, nil
}

func (c *Client) Name() string { return Name }

// Upload inserts the clip and returns the platform's video id. Bodies larger
// than one chunk go through a resumable upload session.
func (c *Client) Upload(ctx context.Context, upload ports.PlatformUpload) (string, error) {
	ctx, span := tracing.TracePlatform(ctx, Name, "upload", "")
	defer span.End()

	id, err := run(ctx, c, "upload", func(ctx context.Context) (string, error) {
		return c.insert(ctx, upload)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}
	tracing.AddSpanAttributes(ctx, tracing.VideoIDKey.String(id))
	return id, nil
}

func (c *Client) insert(ctx context.Context, upload ports.PlatformUpload) (string, error) {
	body, err := upload.Open(ctx)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to open clip: %w", err))
	}
	defer body.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       upload.Title,
			Description: upload.Description,
			Tags:        upload.Tags,
			CategoryId:  c.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: c.cfg.PrivacyStatus,
		},
	}

	media := []googleapi.MediaOption{googleapi.ChunkSize(c.cfg.ChunkSize)}
	if upload.ContentType != "" {
		media = append(media, googleapi.ContentType(upload.ContentType))
	}

	resp, err := c.service.Videos.
		Insert([]string{"snippet", "status"}, video).
		Media(body, media...).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if resp.Id == "" {
		return "", retry.Permanent(fmt.Errorf("upload response carried no video id"))
	}
	return resp.Id, nil
}

// Delete removes a video. A video that is already gone counts as deleted.
func (c *Client) Delete(ctx context.Context, platformID string) error {
	ctx, span := tracing.TracePlatform(ctx, Name, "delete", platformID)
	defer span.End()

	_, err := run(ctx, c, "delete", func(ctx context.Context) (struct{}, error) {
		err := c.service.Videos.Delete(platformID).Context(ctx).Do()
		if err != nil && Classify(err) == domain.PlatformNotFound {
			c.logger.Infow("YouTube video already deleted", "platform_id", platformID)
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return err
}

// run sends fn through the retry loop and the circuit breaker and converts
// the final error into a domain.PlatformError.
func run[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := retry.RetryWithResult(ctx, c.cfg.Retry, func() (T, error) {
		return circuitbreaker.ExecuteWithResult(ctx, c.breaker, func() (T, error) {
			return fn(ctx)
		})
	})
	duration := time.Since(start)

	if err != nil {
		kind := Classify(err)
		c.metrics.RecordPlatformOperation(Name, op, string(kind), duration)
		c.logger.Warnw("YouTube call failed",
			"operation", op,
			"kind", kind,
			"duration", duration,
			"error", err,
		)
		var zero T
		return zero, &domain.PlatformError{Platform: Name, Op: op, Kind: kind, Err: err}
	}

	c.metrics.RecordPlatformOperation(Name, op, "success", duration)
	return result, nil
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/pkg/distributed"
	"reelgate/pkg/utils"
	"reelgate/pkg/validation"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// sniffLength is how much of an upload is buffered for content detection.
const sniffLength = 3072

type VideoServiceConfig struct {
	MaxUploadBytes      int64
	AllowedContentTypes []string
	// Locker serializes platform work per clip. Nil means in-process only.
	Locker ports.Locker
}

type videoService struct {
	videos   ports.VideoRepository
	users    ports.UserRepository
	storage  ports.ObjectStorage
	platform ports.VideoPlatform
	cfg      VideoServiceConfig
	locker   ports.Locker
	metrics  VideoMetrics
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewVideoService wires the video workflow. platform may be nil when
// publishing is turned off.
func NewVideoService(
	videos ports.VideoRepository,
	users ports.UserRepository,
	storage ports.ObjectStorage,
	platform ports.VideoPlatform,
	cfg VideoServiceConfig,
	metrics VideoMetrics,
	logger *zap.SugaredLogger,
) ports.VideoService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	locker := cfg.Locker
	if locker == nil {
		locker = distributed.NewLocalLocker()
	}
	return &videoService{
		videos:   videos,
		users:    users,
		storage:  storage,
		platform: platform,
		cfg:      cfg,
		locker:   locker,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *videoService) Submit(ctx context.Context, viewer domain.Viewer, input ports.SubmitInput) (*domain.Video, error) {
	if viewer.Anonymous() {
		return nil, domain.ErrInvalidToken
	}

	title := strings.TrimSpace(input.Title)
	if err := validation.ValidateVideoTitle(title); err != nil {
		return nil, domain.NewValidationError("title", err)
	}
	description := strings.TrimSpace(input.Description)
	if err := validation.ValidateStringLength(description, 0, validation.MaxDescriptionLength, "description"); err != nil {
		return nil, domain.NewValidationError("description", err)
	}
	tags := make([]string, 0, len(input.Tags))
	for _, tag := range input.Tags {
		tags = append(tags, strings.TrimSpace(tag))
	}
	if err := validation.ValidateTags(tags); err != nil {
		return nil, domain.NewValidationError("tags", err)
	}
	if input.Body == nil {
		return nil, &domain.ValidationError{Field: "file", Message: "file is required"}
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(input.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, &domain.ValidationError{Field: "file", Message: "file is empty"}
	}

	detected := mimetype.Detect(head)
	contentType, ok := s.allowedType(detected)
	if !ok {
		s.metrics.RecordSubmission("unsupported_type", 0)
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, detected.String())
	}

	id := domain.VideoID(utils.NewID())
	key := "videos/" + string(id) + detected.Extension()

	body := io.MultiReader(bytes.NewReader(head), input.Body)
	if s.cfg.MaxUploadBytes > 0 {
		body = &capReader{r: body, remaining: s.cfg.MaxUploadBytes}
	}

	size, err := s.storage.Save(ctx, key, body)
	if err != nil {
		s.removeObject(ctx, key)
		if errors.Is(err, domain.ErrPayloadTooLarge) {
			s.metrics.RecordSubmission("too_large", 0)
			return nil, domain.ErrPayloadTooLarge
		}
		s.metrics.RecordSubmission("failed", 0)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	uploaderName := ""
	if uploader, err := s.users.GetByID(ctx, viewer.UserID); err == nil {
		uploaderName = uploader.Username
	}

	now := s.now()
	video := &domain.Video{
		ID:           id,
		Title:        title,
		Description:  description,
		Tags:         tags,
		UploaderID:   viewer.UserID,
		UploaderName: uploaderName,
		ObjectKey:    key,
		OriginalName: input.OriginalName,
		ContentType:  contentType,
		SizeBytes:    size,
		Status:       domain.VideoStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.videos.Create(ctx, video); err != nil {
		s.removeObject(ctx, key)
		s.metrics.RecordSubmission("failed", 0)
		return nil, fmt.Errorf("failed to save video: %w", err)
	}

	s.metrics.RecordSubmission("accepted", size)
	s.logger.Infow("Video submitted",
		"video_id", video.ID,
		"uploader_id", video.UploaderID,
		"content_type", contentType,
		"size_bytes", size,
	)
	return video, nil
}

// allowedType returns the configured content type that detected matches.
func (s *videoService) allowedType(detected *mimetype.MIME) (string, bool) {
	for _, allowed := range s.cfg.AllowedContentTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return "", false
}

func (s *videoService) removeObject(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warnw("Failed to remove stored object", "key", key, "error", err)
	}
}

func (s *videoService) Get(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*domain.Video, error) {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !video.VisibleTo(viewer) {
		return nil, domain.ErrVideoNotFound
	}
	return video, nil
}

// List applies the visibility rule to the filter. Non-admins only see
// approved clips of other users.
func (s *videoService) List(ctx context.Context, viewer domain.Viewer, filter domain.VideoFilter) ([]*domain.Video, error) {
	filter = filter.Normalize()
	if viewer.IsAdmin() {
		return s.videos.List(ctx, filter)
	}

	own := !viewer.Anonymous() && filter.UploaderID == viewer.UserID
	switch {
	case own, filter.Status == domain.VideoStatusApproved:
		return s.videos.List(ctx, filter)
	case filter.UploaderID != "":
		filter.Status = domain.VideoStatusApproved
		return s.videos.List(ctx, filter)
	case filter.Status != "":
		if viewer.Anonymous() {
			return []*domain.Video{}, nil
		}
		filter.UploaderID = viewer.UserID
		return s.videos.List(ctx, filter)
	}

	approved := filter
	approved.Status = domain.VideoStatusApproved
	if viewer.Anonymous() {
		return s.videos.List(ctx, approved)
	}

	// Approved clips plus the viewer's own, merged newest first. Both
	// queries start at zero so the window can be cut after merging.
	window := filter.Offset + filter.Limit
	approved.Offset, approved.Limit = 0, window
	public, err := s.videos.List(ctx, approved)
	if err != nil {
		return nil, err
	}
	mine, err := s.videos.List(ctx, domain.VideoFilter{UploaderID: viewer.UserID, Limit: window})
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.VideoID]bool, len(public)+len(mine))
	merged := make([]*domain.Video, 0, len(public)+len(mine))
	for _, v := range append(public, mine...) {
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		merged = append(merged, v)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	if filter.Offset >= len(merged) {
		return []*domain.Video{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(merged) {
		end = len(merged)
	}
	return merged[filter.Offset:end], nil
}

func (s *videoService) OpenContent(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*ports.VideoContent, error) {
	video, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	reader, err := s.storage.Load(ctx, video.ObjectKey)
	if err != nil {
		return nil, err
	}
	return &ports.VideoContent{
		Reader:      reader,
		ContentType: video.ContentType,
		Size:        video.SizeBytes,
		Name:        video.OriginalName,
		ModTime:     video.CreatedAt,
	}, nil
}

// Approve returns the approved clip even when the follow-up publish fails;
// the failure is recorded on the returned clip. Moderation holds the same
// per-clip lease as platform work so a decision cannot be overwritten by an
// upload finishing underneath it.
func (s *videoService) Approve(ctx context.Context, viewer domain.Viewer, id domain.VideoID, publish bool) (*domain.Video, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	release, err := s.lockPlatform(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := video.Approve(viewer.UserID, s.now()); err != nil {
		return nil, err
	}
	if err := s.videos.Update(ctx, video); err != nil {
		return nil, err
	}
	s.metrics.RecordModeration("approved")
	s.logger.Infow("Video approved", "video_id", video.ID, "reviewed_by", viewer.UserID)

	if publish && s.platform != nil {
		if err := s.publish(ctx, video); err != nil {
			s.logger.Warnw("Publish after approval failed", "video_id", video.ID, "error", err)
		}
	}
	return video, nil
}

func (s *videoService) Reject(ctx context.Context, viewer domain.Viewer, id domain.VideoID, reason string) (*domain.Video, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	release, err := s.lockPlatform(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := video.Reject(viewer.UserID, reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.videos.Update(ctx, video); err != nil {
		return nil, err
	}
	s.metrics.RecordModeration("rejected")
	s.logger.Infow("Video rejected", "video_id", video.ID, "reviewed_by", viewer.UserID)
	return video, nil
}

func (s *videoService) Publish(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*domain.Video, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if s.platform == nil {
		return nil, domain.ErrPlatformDisabled
	}
	return s.publishLocked(ctx, id)
}

// lockPlatform takes the per-clip lease held across platform calls and the
// record update that follows them.
func (s *videoService) lockPlatform(ctx context.Context, id domain.VideoID) (func(), error) {
	release, ok, err := s.locker.TryAcquire(ctx, "video:"+string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock video %s: %w", id, err)
	}
	if !ok {
		return nil, domain.ErrVideoBusy
	}
	return release, nil
}

// publishLocked re-reads the clip under the lease so a publish that raced
// ahead of this one is seen.
func (s *videoService) publishLocked(ctx context.Context, id domain.VideoID) (*domain.Video, error) {
	release, err := s.lockPlatform(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, video); err != nil {
		return nil, err
	}
	return video, nil
}

// publish uploads video and records the outcome on it. The caller must hold
// the clip's lease. On a platform failure video is left marked failed.
func (s *videoService) publish(ctx context.Context, video *domain.Video) error {
	if video.Status != domain.VideoStatusApproved {
		return domain.ErrNotApproved
	}
	if video.Published() {
		return domain.ErrAlreadyPublished
	}

	platformID, err := s.platform.Upload(ctx, ports.PlatformUpload{
		Title:       video.Title,
		Description: video.Description,
		Tags:        video.Tags,
		ContentType: video.ContentType,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			return s.storage.Load(ctx, video.ObjectKey)
		},
	})
	if err != nil {
		kind := domain.PlatformErrorKindOf(err)
		video.MarkPublishFailed(string(kind), s.now())
		if updateErr := s.videos.Update(ctx, video); updateErr != nil {
			s.logger.Errorw("Failed to record publish failure", "video_id", video.ID, "error", updateErr)
		}
		s.metrics.RecordModeration("publish_failed")
		return err
	}

	video.MarkPublished(platformID, s.now())
	if err := s.videos.Update(ctx, video); err != nil {
		s.logger.Errorw("Published video could not be saved",
			"video_id", video.ID,
			"platform", s.platform.Name(),
			"platform_id", platformID,
			"error", err,
		)
		return err
	}

	s.metrics.RecordModeration("published")
	s.logger.Infow("Video published",
		"video_id", video.ID,
		"platform", s.platform.Name(),
		"platform_id", platformID,
	)
	return nil
}

func (s *videoService) Unpublish(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*domain.Video, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if s.platform == nil {
		return nil, domain.ErrPlatformDisabled
	}
	release, err := s.lockPlatform(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.PlatformVideoID == "" && video.PublishState == domain.PublishStateNone {
		return video, nil
	}

	if video.PlatformVideoID != "" {
		if err := s.platform.Delete(ctx, video.PlatformVideoID); err != nil {
			return nil, err
		}
	}
	video.ClearPublication(s.now())
	if err := s.videos.Update(ctx, video); err != nil {
		return nil, err
	}

	s.metrics.RecordModeration("unpublished")
	s.logger.Infow("Video unpublished", "video_id", video.ID)
	return video, nil
}

// Delete removes the platform copy, then the stored file, then the record,
// so a failure part way leaves a record that can be deleted again.
func (s *videoService) Delete(ctx context.Context, viewer domain.Viewer, id domain.VideoID) error {
	release, err := s.lockPlatform(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	video, err := s.Get(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !video.DeletableBy(viewer) {
		return domain.ErrForbidden
	}

	if video.PlatformVideoID != "" {
		if s.platform == nil {
			return domain.ErrPlatformDisabled
		}
		if err := s.platform.Delete(ctx, video.PlatformVideoID); err != nil {
			return err
		}
	}
	if err := s.storage.Delete(ctx, video.ObjectKey); err != nil {
		return fmt.Errorf("failed to delete stored object: %w", err)
	}
	if err := s.videos.Delete(ctx, video.ID); err != nil {
		return err
	}

	s.logger.Infow("Video deleted", "video_id", video.ID, "deleted_by", viewer.UserID)
	return nil
}

// capReader fails with domain.ErrPayloadTooLarge once more than remaining
// bytes have been read.
type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		return 0, domain.ErrPayloadTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, domain.ErrPayloadTooLarge
	}
	return n, err
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"

	"go.uber.org/zap"
)

// BackupFormatVersion is written into every backup and checked on restore.
const BackupFormatVersion = "1"

const (
	backupPrefix   = "backups/"
	backupPageSize = 100
)

// BackupData is one point-in-time copy of every document collection.
// Clip files are not included; they stay in object storage under the keys
// the video documents reference.
type BackupData struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Videos    []*domain.Video `json:"videos"`
	Users     []*domain.User  `json:"users"`
	Theme     *domain.Theme   `json:"theme,omitempty"`
	Pages     []*domain.Page  `json:"pages"`
}

type RestoreOptions struct {
	OverwriteExisting bool
	RestoreVideos     bool
	RestoreUsers      bool
	RestoreTheme      bool
	RestorePages      bool
}

func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{
		RestoreVideos: true,
		RestoreUsers:  true,
		RestoreTheme:  true,
		RestorePages:  true,
	}
}

// RestoreReport counts documents per outcome.
type RestoreReport struct {
	Created     int `json:"created"`
	Overwritten int `json:"overwritten"`
	Skipped     int `json:"skipped"`
}

type BackupRepositories struct {
	Videos ports.VideoRepository
	Users  ports.UserRepository
	Theme  ports.ThemeRepository
	Pages  ports.PageRepository
}

type BackupService struct {
	repos   BackupRepositories
	storage ports.ObjectStorage
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewBackupService(repos BackupRepositories, storage ports.ObjectStorage, logger *zap.SugaredLogger) *BackupService {
	return &BackupService{
		repos:   repos,
		storage: storage,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BackupKey returns the object key for a backup name. Names without the
// backups/ prefix are looked up under it.
func BackupKey(name string) string {
	if strings.HasPrefix(name, backupPrefix) {
		return name
	}
	return backupPrefix + name
}

// Create writes a backup and returns its object key.
func (s *BackupService) Create(ctx context.Context) (string, error) {
	data, err := s.collect(ctx)
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup data: %w", err)
	}

	key := BackupKey(fmt.Sprintf("backup-%s.json", data.Timestamp.Format("20060102-150405")))
	if _, err := s.storage.Save(ctx, key, bytes.NewReader(encoded)); err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}

	s.logger.Infow("Backup created",
		"key", key,
		"videos", len(data.Videos),
		"users", len(data.Users),
		"pages", len(data.Pages),
	)
	return key, nil
}

func (s *BackupService) collect(ctx context.Context) (*BackupData, error) {
	data := &BackupData{
		Version:   BackupFormatVersion,
		Timestamp: s.now(),
	}

	for offset := 0; ; offset += backupPageSize {
		batch, err := s.repos.Videos.List(ctx, domain.VideoFilter{Limit: backupPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to list videos: %w", err)
		}
		data.Videos = append(data.Videos, batch...)
		if len(batch) < backupPageSize {
			break
		}
	}

	users, err := s.repos.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	data.Users = users

	theme, err := s.repos.Theme.Get(ctx)
	switch {
	case err == nil:
		data.Theme = theme
	case !errors.Is(err, domain.ErrThemeNotFound):
		return nil, fmt.Errorf("failed to read theme: %w", err)
	}

	pages, err := s.repos.Pages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	data.Pages = pages
	return data, nil
}

// Load reads a backup without applying it.
func (s *BackupService) Load(ctx context.Context, name string) (*BackupData, error) {
	rc, err := s.storage.Load(ctx, BackupKey(name))
	if err != nil {
		return nil, fmt.Errorf("failed to load backup: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup data: %w", err)
	}

	var data BackupData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup data: %w", err)
	}
	if data.Version != BackupFormatVersion {
		return nil, fmt.Errorf("unsupported backup version %q", data.Version)
	}
	return &data, nil
}

// Restore applies a backup. Documents that already exist are skipped
// unless OverwriteExisting is set.
func (s *BackupService) Restore(ctx context.Context, name string, opts RestoreOptions) (*RestoreReport, error) {
	s.logger.Infow("Starting restore", "backup", name, "overwrite", opts.OverwriteExisting)

	data, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	report := &RestoreReport{}
	if opts.RestoreUsers {
		if err := s.restoreUsers(ctx, data.Users, opts, report); err != nil {
			return report, err
		}
	}
	if opts.RestoreVideos {
		if err := s.restoreVideos(ctx, data.Videos, opts, report); err != nil {
			return report, err
		}
	}
	if opts.RestoreTheme && data.Theme != nil {
		if err := s.restoreTheme(ctx, data.Theme, opts, report); err != nil {
			return report, err
		}
	}
	if opts.RestorePages {
		if err := s.restorePages(ctx, data.Pages, opts, report); err != nil {
			return report, err
		}
	}

	s.logger.Infow("Restore completed",
		"backup", name,
		"created", report.Created,
		"overwritten", report.Overwritten,
		"skipped", report.Skipped,
	)
	return report, nil
}

func (s *BackupService) restoreUsers(ctx context.Context, users []*domain.User, opts RestoreOptions, report *RestoreReport) error {
	for _, user := range users {
		_, err := s.repos.Users.GetByID(ctx, user.ID)
		switch {
		case err == nil && !opts.OverwriteExisting:
			report.Skipped++
		case err == nil:
			if err := s.repos.Users.Update(ctx, user); err != nil {
				return fmt.Errorf("failed to restore user %s: %w", user.ID, err)
			}
			report.Overwritten++
		case errors.Is(err, domain.ErrUserNotFound):
			err := s.repos.Users.Create(ctx, user)
			if errors.Is(err, domain.ErrUsernameTaken) {
				s.logger.Warnw("Skipping user whose name is taken by another account",
					"user_id", user.ID,
					"username", user.Username,
				)
				report.Skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to restore user %s: %w", user.ID, err)
			}
			report.Created++
		default:
			return fmt.Errorf("failed to look up user %s: %w", user.ID, err)
		}
	}
	return nil
}

func (s *BackupService) restoreVideos(ctx context.Context, videos []*domain.Video, opts RestoreOptions, report *RestoreReport) error {
	for _, video := range videos {
		_, err := s.repos.Videos.GetByID(ctx, video.ID)
		switch {
		case err == nil && !opts.OverwriteExisting:
			report.Skipped++
		case err == nil:
			if err := s.repos.Videos.Update(ctx, video); err != nil {
				return fmt.Errorf("failed to restore video %s: %w", video.ID, err)
			}
			report.Overwritten++
		case errors.Is(err, domain.ErrVideoNotFound):
			if err := s.repos.Videos.Create(ctx, video); err != nil {
				return fmt.Errorf("failed to restore video %s: %w", video.ID, err)
			}
			report.Created++
		default:
			return fmt.Errorf("failed to look up video %s: %w", video.ID, err)
		}
	}
	return nil
}

func (s *BackupService) restoreTheme(ctx context.Context, theme *domain.Theme, opts RestoreOptions, report *RestoreReport) error {
	_, err := s.repos.Theme.Get(ctx)
	exists := err == nil
	if err != nil && !errors.Is(err, domain.ErrThemeNotFound) {
		return fmt.Errorf("failed to read theme: %w", err)
	}
	if exists && !opts.OverwriteExisting {
		report.Skipped++
		return nil
	}
	if err := s.repos.Theme.Save(ctx, theme); err != nil {
		return fmt.Errorf("failed to restore theme: %w", err)
	}
	if exists {
		report.Overwritten++
	} else {
		report.Created++
	}
	return nil
}

func (s *BackupService) restorePages(ctx context.Context, pages []*domain.Page, opts RestoreOptions, report *RestoreReport) error {
	for _, page := range pages {
		_, err := s.repos.Pages.Get(ctx, page.Slug)
		exists := err == nil
		if err != nil && !errors.Is(err, domain.ErrPageNotFound) {
			return fmt.Errorf("failed to look up page %s: %w", page.Slug, err)
		}
		if exists && !opts.OverwriteExisting {
			report.Skipped++
			continue
		}
		if _, err := s.repos.Pages.Save(ctx, page); err != nil {
			return fmt.Errorf("failed to restore page %s: %w", page.Slug, err)
		}
		if exists {
			report.Overwritten++
		} else {
			report.Created++
		}
	}
	return nil
}

package ports

import (
	"context"
	"io"

	"reelgate/internal/core/domain"
)

type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) error
	GetByID(ctx context.Context, id domain.VideoID) (*domain.Video, error)
	Update(ctx context.Context, video *domain.Video) error
	Delete(ctx context.Context, id domain.VideoID) error
	// List returns matching videos newest first.
	List(ctx context.Context, filter domain.VideoFilter) ([]*domain.Video, error)
}

type UserRepository interface {
	// Create fails with domain.ErrUsernameTaken when the normalized username
	// is already registered.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context) ([]*domain.User, error)
}

type ThemeRepository interface {
	// Get returns domain.ErrThemeNotFound until a theme has been saved.
	Get(ctx context.Context) (*domain.Theme, error)
	Save(ctx context.Context, theme *domain.Theme) error
}

type PageRepository interface {
	Get(ctx context.Context, slug domain.PageSlug) (*domain.Page, error)
	Save(ctx context.Context, page *domain.Page) (created bool, err error)
	Delete(ctx context.Context, slug domain.PageSlug) error
	List(ctx context.Context) ([]*domain.Page, error)
}

// ChangePublisher receives every successful document write.
type ChangePublisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// ObjectStorage keeps uploaded clip files. Keys are slash separated paths.
type ObjectStorage interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Load(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// PlatformUpload describes one clip to push to the external platform. Open
// is called once per attempt so a retried upload starts from the first byte.
type PlatformUpload struct {
	Title       string
	Description string
	Tags        []string
	ContentType string
	Open        func(ctx context.Context) (io.ReadCloser, error)
}

// Locker grants exclusive leases by key. ok is false when the key is held
// elsewhere.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// VideoPlatform is the external video host clips are published to.
type VideoPlatform interface {
	Name() string
	Upload(ctx context.Context, upload PlatformUpload) (platformID string, err error)
	// Delete treats a video that no longer exists remotely as deleted.
	Delete(ctx context.Context, platformID string) error
}

package ports

import (
	"context"
	"io"
	"time"

	"reelgate/internal/core/domain"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Session is a signed-in user together with fresh tokens.
type Session struct {
	User   *domain.User
	Tokens TokenPair
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AdminVerification is the result of checking the site admin password.
// Session is set only when Valid is true.
type AdminVerification struct {
	Valid   bool
	Session *Session
}

type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*Session, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	VerifyAdminPassword(ctx context.Context, viewer domain.Viewer, password string) (*AdminVerification, error)
	GetProfile(ctx context.Context, id domain.UserID) (*domain.User, error)
	UpdateProfile(ctx context.Context, viewer domain.Viewer, update domain.ProfileUpdate) (*domain.User, error)
	ListUsers(ctx context.Context, viewer domain.Viewer) ([]*domain.User, error)
	SetRole(ctx context.Context, viewer domain.Viewer, id domain.UserID, role domain.UserRole) (*domain.User, error)
	// Promote grants the admin role by username without a viewer. Used by
	// operator tooling.
	Promote(ctx context.Context, username string) (*domain.User, error)
}

type SubmitInput struct {
	Title        string
	Description  string
	Tags         []string
	OriginalName string
	Body         io.Reader
}

// VideoContent streams a stored clip. Callers must close Reader.
type VideoContent struct {
	Reader      io.ReadCloser
	ContentType string
	Size        int64
	Name        string
	ModTime     time.Time
}

type VideoService interface {
	Submit(ctx context.Context, viewer domain.Viewer, input SubmitInput) (*domain.Video, error)
	Get(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*domain.Video, error)
	List(ctx context.Context, viewer domain.Viewer, filter domain.VideoFilter) ([]*domain.Video, error)
	OpenContent(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*VideoContent, error)
	Approve(ctx context.Context, viewer domain.Viewer, id domain.VideoID, publish bool) (*domain.Video, error)
	Reject(ctx context.Context, viewer domain.Viewer, id domain.VideoID, reason string) (*domain.Video, error)
	Publish(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*domain.Video, error)
	Unpublish(ctx context.Context, viewer domain.Viewer, id domain.VideoID) (*domain.Video, error)
	Delete(ctx context.Context, viewer domain.Viewer, id domain.VideoID) error
}

type RenderedPage struct {
	Page *domain.Page `json:"page"`
	HTML string       `json:"html"`
}

type SiteService interface {
	GetTheme(ctx context.Context) (*domain.Theme, error)
	UpdateTheme(ctx context.Context, viewer domain.Viewer, theme domain.Theme) (*domain.Theme, error)
	ResetTheme(ctx context.Context, viewer domain.Viewer) (*domain.Theme, error)
	ListPages(ctx context.Context, viewer domain.Viewer) ([]*domain.Page, error)
	GetPage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) (*domain.Page, error)
	SavePage(ctx context.Context, viewer domain.Viewer, page domain.Page) (*domain.Page, error)
	DeletePage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) error
	RenderPage(ctx context.Context, viewer domain.Viewer, slug domain.PageSlug) (*RenderedPage, error)
}

// SnapshotService answers live subscriptions with the same visibility
// rules as the REST API.
type SnapshotService interface {
	Snapshot(ctx context.Context, viewer domain.Viewer, collection domain.Collection, docID string) (interface{}, error)
	// Filter adapts event for viewer. A change that makes a document
	// invisible is turned into a removal; ok is false when the viewer must
	// not learn about the event at all, including new documents the viewer
	// cannot see.
	Filter(viewer domain.Viewer, event domain.ChangeEvent) (filtered domain.ChangeEvent, ok bool)
}

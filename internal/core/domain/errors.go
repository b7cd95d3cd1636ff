package domain

import "errors"

var (
	ErrVideoNotFound        = errors.New("video not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrPageNotFound         = errors.New("page not found")
	ErrThemeNotFound        = errors.New("theme not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidToken         = errors.New("invalid token")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrVideoPublished       = errors.New("video is published on the platform")
	ErrAlreadyPublished     = errors.New("video already published")
	ErrNotApproved          = errors.New("video is not approved")
	ErrVideoBusy            = errors.New("video platform operation already in progress")
	ErrPlatformDisabled     = errors.New("video platform disabled")
	ErrAdminPasswordUnset   = errors.New("admin password not configured")
	ErrCannotDemoteSelf     = errors.New("cannot remove your own admin role")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrObjectNotFound       = errors.New("object not found")
)

// ValidationError carries a user-facing message for rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError wraps err as a ValidationError on field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error()}
}

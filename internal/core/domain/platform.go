package domain

import (
	"errors"
	"fmt"
)

// PlatformErrorKind classifies failures reported by the external video
// platform.
type PlatformErrorKind string

const (
	PlatformQuotaExceeded PlatformErrorKind = "quota_exceeded"
	PlatformInvalidClient PlatformErrorKind = "invalid_client"
	PlatformInvalidGrant  PlatformErrorKind = "invalid_grant"
	PlatformUnauthorized  PlatformErrorKind = "unauthorized"
	PlatformNotFound      PlatformErrorKind = "not_found"
	PlatformUnavailable   PlatformErrorKind = "unavailable"
	PlatformRejected      PlatformErrorKind = "rejected"
	PlatformUnknown       PlatformErrorKind = "unknown"
)

// MessageKey is the i18n key describing the kind to end users.
func (k PlatformErrorKind) MessageKey() string {
	return "platform." + string(k)
}

// PlatformError is returned by VideoPlatform implementations.
type PlatformError struct {
	Platform string
	Op       string
	Kind     PlatformErrorKind
	Err      error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s %s failed (%s): %v", e.Platform, e.Op, e.Kind, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// PlatformErrorKindOf reports the kind of the first PlatformError in err's
// chain, or PlatformUnknown.
func PlatformErrorKindOf(err error) PlatformErrorKind {
	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return PlatformUnknown
}

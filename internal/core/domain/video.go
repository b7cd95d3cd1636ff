package domain

import (
	"strings"
	"time"

	"reelgate/pkg/validation"
)

type VideoID string

type VideoStatus string

const (
	VideoStatusPending  VideoStatus = "pending"
	VideoStatusApproved VideoStatus = "approved"
	VideoStatusRejected VideoStatus = "rejected"
)

func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusPending, VideoStatusApproved, VideoStatusRejected:
		return true
	}
	return false
}

type PublishState string

const (
	PublishStateNone      PublishState = ""
	PublishStatePublished PublishState = "published"
	PublishStateFailed    PublishState = "failed"
)

type Video struct {
	ID           VideoID  `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	UploaderID   UserID   `json:"uploader_id"`
	UploaderName string   `json:"uploader_name"`

	ObjectKey    string `json:"object_key"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	SizeBytes    int64  `json:"size_bytes"`

	Status          VideoStatus `json:"status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	ReviewedBy      UserID      `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time  `json:"reviewed_at,omitempty"`

	PlatformVideoID  string       `json:"platform_video_id,omitempty"`
	PublishState     PublishState `json:"publish_state,omitempty"`
	PublishErrorCode string       `json:"publish_error_code,omitempty"`
	PublishedAt      *time.Time   `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (v *Video) Published() bool {
	return v.PublishState == PublishStatePublished
}

// Approve moves a pending or rejected clip to approved.
func (v *Video) Approve(by UserID, at time.Time) error {
	if v.Status != VideoStatusPending && v.Status != VideoStatusRejected {
		return ErrInvalidTransition
	}
	v.Status = VideoStatusApproved
	v.RejectionReason = ""
	v.ReviewedBy = by
	v.ReviewedAt = &at
	v.UpdatedAt = at
	return nil
}

// Reject moves a pending or approved clip to rejected. A clip that is live
// on the platform has to be unpublished first.
func (v *Video) Reject(by UserID, reason string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateNonEmptyString(reason, "reason"); err != nil {
		return NewValidationError("reason", err)
	}
	if err := validation.ValidateStringLength(reason, 1, validation.MaxReasonLength, "reason"); err != nil {
		return NewValidationError("reason", err)
	}
	if v.Status != VideoStatusPending && v.Status != VideoStatusApproved {
		return ErrInvalidTransition
	}
	if v.Published() {
		return ErrVideoPublished
	}
	v.Status = VideoStatusRejected
	v.RejectionReason = reason
	v.ReviewedBy = by
	v.ReviewedAt = &at
	v.UpdatedAt = at
	return nil
}

// MarkPublished records a successful platform upload.
func (v *Video) MarkPublished(platformID string, at time.Time) {
	v.PlatformVideoID = platformID
	v.PublishState = PublishStatePublished
	v.PublishErrorCode = ""
	v.PublishedAt = &at
	v.UpdatedAt = at
}

// MarkPublishFailed records a failed upload under a classified error code.
func (v *Video) MarkPublishFailed(code string, at time.Time) {
	v.PublishState = PublishStateFailed
	v.PublishErrorCode = code
	v.UpdatedAt = at
}

// ClearPublication forgets the platform copy after it was removed.
func (v *Video) ClearPublication(at time.Time) {
	v.PlatformVideoID = ""
	v.PublishState = PublishStateNone
	v.PublishErrorCode = ""
	v.PublishedAt = nil
	v.UpdatedAt = at
}

// VisibleTo reports whether viewer may see the clip. Approved clips are
// public; anything else is limited to the uploader and admins.
func (v *Video) VisibleTo(viewer Viewer) bool {
	if v.Status == VideoStatusApproved {
		return true
	}
	if viewer.IsAdmin() {
		return true
	}
	return !viewer.Anonymous() && viewer.UserID == v.UploaderID
}

// DeletableBy reports whether viewer may delete the clip. Uploaders lose
// that right once the clip is approved.
func (v *Video) DeletableBy(viewer Viewer) bool {
	if viewer.IsAdmin() {
		return true
	}
	return !viewer.Anonymous() && viewer.UserID == v.UploaderID && v.Status != VideoStatusApproved
}

// VideoFilter narrows a listing. Zero values mean no restriction.
type VideoFilter struct {
	Status     VideoStatus
	UploaderID UserID
	Limit      int
	Offset     int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize clamps Limit and Offset into the accepted range.
func (f VideoFilter) Normalize() VideoFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether v passes the status and uploader filters.
func (f VideoFilter) Matches(v *Video) bool {
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.UploaderID != "" && v.UploaderID != f.UploaderID {
		return false
	}
	return true
}

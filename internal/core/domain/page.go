package domain

import (
	"strings"
	"time"

	"reelgate/pkg/validation"
)

type PageSlug string

type Page struct {
	Slug      PageSlug  `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Published bool      `json:"published"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy UserID    `json:"updated_by,omitempty"`
}

const MaxPageBodyLength = 100_000

func (p *Page) Validate() error {
	if err := validation.ValidateSlug(string(p.Slug)); err != nil {
		return NewValidationError("slug", err)
	}
	p.Title = strings.TrimSpace(p.Title)
	if err := validation.ValidateStringLength(p.Title, 1, 120, "title"); err != nil {
		return NewValidationError("title", err)
	}
	if err := validation.ValidateStringLength(p.Body, 0, MaxPageBodyLength, "body"); err != nil {
		return NewValidationError("body", err)
	}
	return nil
}

// VisibleTo hides drafts from everyone but admins.
func (p *Page) VisibleTo(viewer Viewer) bool {
	return p.Published || viewer.IsAdmin()
}

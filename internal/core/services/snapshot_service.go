package services

import (
	"context"
	"encoding/json"
	"fmt"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
)

type snapshotService struct {
	videos ports.VideoService
	users  ports.UserRepository
	site   ports.SiteService
}

func NewSnapshotService(videos ports.VideoService, users ports.UserRepository, site ports.SiteService) ports.SnapshotService {
	return &snapshotService{videos: videos, users: users, site: site}
}

// Snapshot returns one document when docID is set and the visible
// collection otherwise.
func (s *snapshotService) Snapshot(ctx context.Context, viewer domain.Viewer, collection domain.Collection, docID string) (interface{}, error) {
	switch collection {
	case domain.CollectionVideos:
		if docID != "" {
			return s.videos.Get(ctx, viewer, domain.VideoID(docID))
		}
		return s.videos.List(ctx, viewer, domain.VideoFilter{})

	case domain.CollectionUsers:
		return s.userSnapshot(ctx, viewer, docID)

	case domain.CollectionPages:
		if docID != "" {
			return s.site.GetPage(ctx, viewer, domain.PageSlug(docID))
		}
		return s.site.ListPages(ctx, viewer)

	case domain.CollectionTheme:
		if docID != "" && docID != domain.ThemeDocID {
			return nil, domain.ErrThemeNotFound
		}
		return s.site.GetTheme(ctx)
	}
	return nil, &domain.ValidationError{Field: "collection", Message: fmt.Sprintf("unknown collection %q", collection)}
}

// Users only see their own profile; admins see everyone.
func (s *snapshotService) userSnapshot(ctx context.Context, viewer domain.Viewer, docID string) (interface{}, error) {
	if docID != "" {
		if !viewer.IsAdmin() && (viewer.Anonymous() || domain.UserID(docID) != viewer.UserID) {
			return nil, domain.ErrUserNotFound
		}
		user, err := s.users.GetByID(ctx, domain.UserID(docID))
		if err != nil {
			return nil, err
		}
		return user.Profile(), nil
	}

	profiles := []domain.Profile{}
	if viewer.IsAdmin() {
		users, err := s.users.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			profiles = append(profiles, user.Profile())
		}
		return profiles, nil
	}
	if viewer.Anonymous() {
		return profiles, nil
	}
	user, err := s.users.GetByID(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	return append(profiles, user.Profile()), nil
}

func (s *snapshotService) Filter(viewer domain.Viewer, event domain.ChangeEvent) (domain.ChangeEvent, bool) {
	if event.Type == domain.ChangeRemoved {
		if event.Collection == domain.CollectionUsers {
			return event, viewer.IsAdmin() || domain.UserID(event.DocID) == viewer.UserID
		}
		return event, true
	}

	switch event.Collection {
	case domain.CollectionVideos:
		var video domain.Video
		if err := json.Unmarshal(event.Document, &video); err != nil {
			return event, false
		}
		if video.VisibleTo(viewer) {
			return event, true
		}
		return removal(event)

	case domain.CollectionPages:
		var page domain.Page
		if err := json.Unmarshal(event.Document, &page); err != nil {
			return event, false
		}
		if page.VisibleTo(viewer) {
			return event, true
		}
		return removal(event)

	case domain.CollectionUsers:
		if viewer.IsAdmin() {
			return event, true
		}
		return event, !viewer.Anonymous() && domain.UserID(event.DocID) == viewer.UserID

	case domain.CollectionTheme:
		return event, true
	}
	return event, false
}

// removal turns a change the viewer may not see into a removal, so a client
// that held the document drops it. A new document the viewer may not see is
// suppressed; nobody can hold it yet.
func removal(event domain.ChangeEvent) (domain.ChangeEvent, bool) {
	if event.Type == domain.ChangeAdded {
		return event, false
	}
	event.Type = domain.ChangeRemoved
	event.Document = nil
	return event, true
}

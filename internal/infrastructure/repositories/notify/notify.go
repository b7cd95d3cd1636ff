// Package notify wraps repositories so every successful write is published
// as a change event for live subscribers.
package notify

import (
	"context"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"

	"go.uber.org/zap"
)

type notifier struct {
	publisher ports.ChangePublisher
	logger    *zap.SugaredLogger
}

// emit never fails the write it reports on; the document is already stored.
func (n notifier) emit(ctx context.Context, collection domain.Collection, docID string, changeType domain.ChangeType, doc interface{}) {
	event, err := domain.NewChangeEvent(collection, docID, changeType, doc)
	if err != nil {
		n.logger.Errorw("failed to encode change event",
			"collection", collection,
			"doc_id", docID,
			"error", err,
		)
		return
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warnw("failed to publish change event",
			"collection", collection,
			"doc_id", docID,
			"type", changeType,
			"error", err,
		)
	}
}

type VideoRepository struct {
	ports.VideoRepository
	notifier
}

func NewVideoRepository(inner ports.VideoRepository, publisher ports.ChangePublisher, logger *zap.SugaredLogger) *VideoRepository {
	return &VideoRepository{VideoRepository: inner, notifier: notifier{publisher, logger}}
}

func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	if err := r.VideoRepository.Create(ctx, video); err != nil {
		return err
	}
	r.emit(ctx, domain.CollectionVideos, string(video.ID), domain.ChangeAdded, video)
	return nil
}

func (r *VideoRepository) Update(ctx context.Context, video *domain.Video) error {
	if err := r.VideoRepository.Update(ctx, video); err != nil {
		return err
	}
	r.emit(ctx, domain.CollectionVideos, string(video.ID), domain.ChangeModified, video)
	return nil
}

func (r *VideoRepository) Delete(ctx context.Context, id domain.VideoID) error {
	if err := r.VideoRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.emit(ctx, domain.CollectionVideos, string(id), domain.ChangeRemoved, nil)
	return nil
}

// UserRepository publishes profiles, never the stored credentials.
type UserRepository struct {
	ports.UserRepository
	notifier
}

func NewUserRepository(inner ports.UserRepository, publisher ports.ChangePublisher, logger *zap.SugaredLogger) *UserRepository {
	return &UserRepository{UserRepository: inner, notifier: notifier{publisher, logger}}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Create(ctx, user); err != nil {
		return err
	}
	r.emit(ctx, domain.CollectionUsers, string(user.ID), domain.ChangeAdded, user.Profile())
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := r.UserRepository.Update(ctx, user); err != nil {
		return err
	}
	stored, err := r.UserRepository.GetByID(ctx, user.ID)
	if err != nil {
		stored = user
	}
	r.emit(ctx, domain.CollectionUsers, string(user.ID), domain.ChangeModified, stored.Profile())
	return nil
}

type ThemeRepository struct {
	ports.ThemeRepository
	notifier
}

func NewThemeRepository(inner ports.ThemeRepository, publisher ports.ChangePublisher, logger *zap.SugaredLogger) *ThemeRepository {
	return &ThemeRepository{ThemeRepository: inner, notifier: notifier{publisher, logger}}
}

func (r *ThemeRepository) Save(ctx context.Context, theme *domain.Theme) error {
	if err := r.ThemeRepository.Save(ctx, theme); err != nil {
		return err
	}
	r.emit(ctx, domain.CollectionTheme, domain.ThemeDocID, domain.ChangeModified, theme)
	return nil
}

type PageRepository struct {
	ports.PageRepository
	notifier
}

func NewPageRepository(inner ports.PageRepository, publisher ports.ChangePublisher, logger *zap.SugaredLogger) *PageRepository {
	return &PageRepository{PageRepository: inner, notifier: notifier{publisher, logger}}
}

func (r *PageRepository) Save(ctx context.Context, page *domain.Page) (bool, error) {
	created, err := r.PageRepository.Save(ctx, page)
	if err != nil {
		return created, err
	}
	changeType := domain.ChangeModified
	if created {
		changeType = domain.ChangeAdded
	}
	r.emit(ctx, domain.CollectionPages, string(page.Slug), changeType, page)
	return created, nil
}

func (r *PageRepository) Delete(ctx context.Context, slug domain.PageSlug) error {
	if err := r.PageRepository.Delete(ctx, slug); err != nil {
		return err
	}
	r.emit(ctx, domain.CollectionPages, string(slug), domain.ChangeRemoved, nil)
	return nil
}

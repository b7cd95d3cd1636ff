package http

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/middleware"
	"reelgate/pkg/errors"
	"reelgate/pkg/i18n"
	"reelgate/pkg/utils"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for form fields and part headers on
// top of the file size limit.
const multipartOverhead = 1 << 20

type VideoHandler struct {
	videos         ports.VideoService
	maxUploadBytes int64
}

func NewVideoHandler(videos ports.VideoService, maxUploadBytes int64) *VideoHandler {
	return &VideoHandler{videos: videos, maxUploadBytes: maxUploadBytes}
}

func parseFilter(c *gin.Context) (domain.VideoFilter, error) {
	filter := domain.VideoFilter{
		Status:     domain.VideoStatus(c.Query("status")),
		UploaderID: domain.UserID(c.Query("uploader")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, errors.NewInvalidInputError(fmt.Sprintf("unknown status %q", filter.Status))
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, errors.NewInvalidInputError(name + " must be a non-negative integer")
		}
		*dst = n
	}
	return filter, nil
}

// videoResponse adds a translated explanation when the last publish failed.
func videoResponse(c *gin.Context, video *domain.Video) gin.H {
	body := gin.H{"video": video}
	if video.PublishState == domain.PublishStateFailed && video.PublishErrorCode != "" {
		kind := domain.PlatformErrorKind(video.PublishErrorCode)
		tag := i18n.Match(c.GetHeader("Accept-Language"))
		body["publish_error"] = i18n.Translate(tag, kind.MessageKey(), video.PublishErrorCode)
	}
	return body
}

func (h *VideoHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.Error(err)
		return
	}

	videos, err := h.videos.List(c.Request.Context(), middleware.ViewerFromContext(c), filter)
	if err != nil {
		c.Error(err)
		return
	}
	if videos == nil {
		videos = []*domain.Video{}
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
}

// Submit accepts multipart/form-data with a file part and title,
// description and tags fields. Tags are comma separated.
func (h *VideoHandler) Submit(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.Error(errors.NewPayloadTooLargeError(h.maxUploadBytes))
			return
		}
		c.Error(errors.NewInvalidInputError("file is required"))
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		c.Error(errors.NewPayloadTooLargeError(h.maxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(err)
		return
	}
	defer file.Close()

	video, err := h.videos.Submit(c.Request.Context(), middleware.ViewerFromContext(c), ports.SubmitInput{
		Title:        c.PostForm("title"),
		Description:  c.PostForm("description"),
		Tags:         utils.SplitTags(c.PostForm("tags")),
		OriginalName: fileHeader.Filename,
		Body:         file,
	})
	if err != nil {
		if stderrors.Is(err, domain.ErrPayloadTooLarge) {
			c.Error(errors.NewPayloadTooLargeError(h.maxUploadBytes))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"video": video})
}

func (h *VideoHandler) Get(c *gin.Context) {
	video, err := h.videos.Get(c.Request.Context(), middleware.ViewerFromContext(c), domain.VideoID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, videoResponse(c, video))
}

func (h *VideoHandler) Content(c *gin.Context) {
	content, err := h.videos.OpenContent(c.Request.Context(), middleware.ViewerFromContext(c), domain.VideoID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}
	defer content.Reader.Close()

	disposition := mime.FormatMediaType("inline", map[string]string{"filename": content.Name})

	// Seekable objects get Range and conditional request support so players
	// can seek.
	if rs, ok := content.Reader.(io.ReadSeeker); ok {
		c.Header("Content-Type", content.ContentType)
		c.Header("Content-Disposition", disposition)
		http.ServeContent(c.Writer, c.Request, content.Name, content.ModTime, rs)
		return
	}

	c.DataFromReader(http.StatusOK, content.Size, content.ContentType, content.Reader, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (h *VideoHandler) Delete(c *gin.Context) {
	if err := h.videos.Delete(c.Request.Context(), middleware.ViewerFromContext(c), domain.VideoID(c.Param("id"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

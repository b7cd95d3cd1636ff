package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/services"
	"reelgate/pkg/errors"
	"reelgate/pkg/i18n"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sentinel struct {
	err  error
	code errors.ErrorCode
	key  string
}

var sentinels = []sentinel{
	{domain.ErrVideoNotFound, errors.ErrCodeNotFound, "video.not_found"},
	{domain.ErrObjectNotFound, errors.ErrCodeNotFound, "video.not_found"},
	{domain.ErrPageNotFound, errors.ErrCodeNotFound, "page.not_found"},
	{domain.ErrUserNotFound, errors.ErrCodeNotFound, "error.not_found"},
	{domain.ErrThemeNotFound, errors.ErrCodeNotFound, "error.not_found"},
	{domain.ErrUsernameTaken, errors.ErrCodeConflict, "auth.username_taken"},
	{domain.ErrInvalidCredentials, errors.ErrCodeUnauthorized, "auth.invalid_credentials"},
	{domain.ErrInvalidToken, errors.ErrCodeUnauthorized, "error.unauthorized"},
	{services.ErrExpiredToken, errors.ErrCodeUnauthorized, "error.unauthorized"},
	{domain.ErrForbidden, errors.ErrCodeForbidden, "error.forbidden"},
	{domain.ErrInvalidTransition, errors.ErrCodeConflict, "video.invalid_transition"},
	{domain.ErrVideoPublished, errors.ErrCodeConflict, "video.published"},
	{domain.ErrAlreadyPublished, errors.ErrCodeConflict, "video.already_published"},
	{domain.ErrNotApproved, errors.ErrCodeConflict, "video.not_approved"},
	{domain.ErrVideoBusy, errors.ErrCodeConflict, "video.busy"},
	{domain.ErrCannotDemoteSelf, errors.ErrCodeConflict, ""},
	{domain.ErrPlatformDisabled, errors.ErrCodeServiceUnavailable, "platform.disabled"},
	{domain.ErrAdminPasswordUnset, errors.ErrCodeServiceUnavailable, "auth.admin_password_unconfigured"},
	{domain.ErrUnsupportedMediaType, errors.ErrCodeUnsupportedMediaType, "error.unsupported_media_type"},
	{domain.ErrPayloadTooLarge, errors.ErrCodePayloadTooLarge, "error.payload_too_large"},
}

// ToAppError maps service errors onto API errors. Unknown errors become
// internal errors that keep err as their cause.
func ToAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	var validation *domain.ValidationError
	if stderrors.As(err, &validation) {
		appErr := errors.NewInvalidInputError(validation.Error())
		if validation.Field != "" {
			appErr.WithDetail("field", validation.Field)
		}
		return appErr
	}

	var platformErr *domain.PlatformError
	if stderrors.As(err, &platformErr) {
		code := errors.ErrCodeBadGateway
		if platformErr.Kind == domain.PlatformUnavailable {
			code = errors.ErrCodeServiceUnavailable
		}
		return errors.Wrap(err, code, platformErr.Error()).
			WithKey(platformErr.Kind.MessageKey()).
			WithDetail("platform", platformErr.Platform).
			WithDetail("platform_error", string(platformErr.Kind))
	}

	for _, s := range sentinels {
		if stderrors.Is(err, s.err) {
			return errors.Wrap(err, s.code, s.err.Error()).WithKey(s.key)
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "request timed out").
			WithKey("error.service_unavailable")
	}

	return errors.Wrap(err, errors.ErrCodeInternal, "Internal server error").
		WithKey("error.internal_error")
}

// LocalizedMessage picks the message for appErr in the language preferred
// by acceptLanguage.
func LocalizedMessage(appErr *errors.AppError, acceptLanguage string) string {
	key := appErr.Key
	if key == "" && appErr.Code != errors.ErrCodeInvalidInput {
		key = "error." + strings.ToLower(string(appErr.Code))
	}
	return i18n.Translate(i18n.Match(acceptLanguage), key, appErr.Message)
}

// RespondError writes appErr as the JSON error body and aborts the chain.
func RespondError(c *gin.Context, appErr *errors.AppError) {
	body := gin.H{
		"error":   string(appErr.Code),
		"message": LocalizedMessage(appErr, c.GetHeader("Accept-Language")),
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}

// ErrorHandlerMiddleware handles application errors and returns appropriate HTTP responses
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := ToAppError(err)

		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("request failed",
				"code", appErr.Code,
				"error", err.Error(),
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"request_id", c.GetString(RequestIDKey),
			)
		} else {
			logger.Debugw("request rejected",
				"code", appErr.Code,
				"error", err.Error(),
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
			)
		}

		RespondError(c, appErr)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", c.GetString(RequestIDKey),
				)

				RespondError(c, errors.NewInternalError("Internal server error"))
			}
		}()

		c.Next()
	}
}

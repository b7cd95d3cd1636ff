package youtube

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"reelgate/internal/core/domain"
	"reelgate/pkg/circuitbreaker"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var quotaReasons = map[string]bool{
	"quotaExceeded":       true,
	"dailyLimitExceeded":  true,
	"uploadLimitExceeded": true,
}

var throttleReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// Classify maps an error from the token endpoint or the Data API to a
// platform error kind. Structured fields are checked first; the message
// text is the fallback for errors that only carry a string.
func Classify(err error) domain.PlatformErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return domain.PlatformUnavailable
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return classifyTokenError(retrieveErr)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	if kind := classifyText(err.Error()); kind != "" {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.PlatformUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.PlatformUnavailable
	}
	return domain.PlatformUnknown
}

func classifyTokenError(err *oauth2.RetrieveError) domain.PlatformErrorKind {
	switch err.ErrorCode {
	case "invalid_client", "unauthorized_client":
		return domain.PlatformInvalidClient
	case "invalid_grant":
		return domain.PlatformInvalidGrant
	}
	if err.Response != nil && err.Response.StatusCode >= http.StatusInternalServerError {
		return domain.PlatformUnavailable
	}
	if kind := classifyText(string(err.Body)); kind != "" {
		return kind
	}
	return domain.PlatformUnauthorized
}

func classifyAPIError(err *googleapi.Error) domain.PlatformErrorKind {
	for _, item := range err.Errors {
		if quotaReasons[item.Reason] {
			return domain.PlatformQuotaExceeded
		}
		if throttleReasons[item.Reason] {
			return domain.PlatformUnavailable
		}
	}
	if kind := classifyText(err.Message + " " + err.Body); kind != "" {
		return kind
	}

	switch {
	case err.Code == http.StatusUnauthorized:
		return domain.PlatformUnauthorized
	case err.Code == http.StatusNotFound:
		return domain.PlatformNotFound
	case err.Code == http.StatusTooManyRequests, err.Code >= http.StatusInternalServerError:
		return domain.PlatformUnavailable
	case err.Code >= http.StatusBadRequest:
		return domain.PlatformRejected
	}
	return domain.PlatformUnknown
}

func classifyText(text string) domain.PlatformErrorKind {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "quota"):
		return domain.PlatformQuotaExceeded
	case strings.Contains(text, "invalid_client"), strings.Contains(text, "invalid client"):
		return domain.PlatformInvalidClient
	case strings.Contains(text, "invalid_grant"):
		return domain.PlatformInvalidGrant
	}
	return ""
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	return Classify(err) == domain.PlatformUnavailable
}

package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"reelgate/internal/core/domain"
	"reelgate/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.PlatformErrorKind
	}{
		{
			name: "quota reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}},
			want: domain.PlatformQuotaExceeded,
		},
		{
			name: "upload limit reason",
			err:  &googleapi.Error{Code: 400, Errors: []googleapi.ErrorItem{{Reason: "uploadLimitExceeded"}}},
			want: domain.PlatformQuotaExceeded,
		},
		{
			name: "quota text only",
			err:  &googleapi.Error{Code: 403, Message: "The request cannot be completed because you have exceeded your quota."},
			want: domain.PlatformQuotaExceeded,
		},
		{
			name: "rate limited",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}},
			want: domain.PlatformUnavailable,
		},
		{
			name: "unauthorized",
			err:  &googleapi.Error{Code: 401, Message: "Request had invalid authentication credentials."},
			want: domain.PlatformUnauthorized,
		},
		{
			name: "not found",
			err:  &googleapi.Error{Code: 404},
			want: domain.PlatformNotFound,
		},
		{
			name: "server error",
			err:  &googleapi.Error{Code: 503},
			want: domain.PlatformUnavailable,
		},
		{
			name: "too many requests",
			err:  &googleapi.Error{Code: 429},
			want: domain.PlatformUnavailable,
		},
		{
			name: "bad request",
			err:  &googleapi.Error{Code: 400, Message: "Invalid category"},
			want: domain.PlatformRejected,
		},
		{
			name: "token invalid client",
			err:  &oauth2.RetrieveError{Response: &http.Response{StatusCode: 401}, ErrorCode: "invalid_client"},
			want: domain.PlatformInvalidClient,
		},
		{
			name: "token invalid grant",
			err:  &oauth2.RetrieveError{Response: &http.Response{StatusCode: 400}, ErrorCode: "invalid_grant"},
			want: domain.PlatformInvalidGrant,
		},
		{
			name: "token server down",
			err:  &oauth2.RetrieveError{Response: &http.Response{StatusCode: 502}},
			want: domain.PlatformUnavailable,
		},
		{
			name: "wrapped token error",
			err:  fmt.Errorf("Post: %w", &oauth2.RetrieveError{Response: &http.Response{StatusCode: 401}, ErrorCode: "invalid_client"}),
			want: domain.PlatformInvalidClient,
		},
		{
			name: "plain text invalid client",
			err:  errors.New("oauth2: cannot fetch token: 401 Unauthorized Response: {\"error\": \"invalid_client\"}"),
			want: domain.PlatformInvalidClient,
		},
		{
			name: "open breaker",
			err:  fmt.Errorf("%w (state open)", circuitbreaker.ErrOpen),
			want: domain.PlatformUnavailable,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: domain.PlatformUnavailable,
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: domain.PlatformUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}

	assert.Equal(t, domain.PlatformErrorKind(""), Classify(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&googleapi.Error{Code: 500}))
	assert.False(t, retryable(&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}))
	assert.False(t, retryable(&googleapi.Error{Code: 400}))
	assert.False(t, retryable(circuitbreaker.ErrOpen))
	assert.False(t, retryable(context.Canceled))
}

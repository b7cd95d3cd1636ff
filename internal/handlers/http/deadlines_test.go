package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLongRequest(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/v1/videos", true},
		{http.MethodGet, "/api/v1/videos", false},
		{http.MethodGet, "/api/v1/videos/abc", false},
		{http.MethodDelete, "/api/v1/videos/abc", true},
		{http.MethodGet, "/api/v1/videos/abc/content", true},
		{http.MethodPost, "/api/v1/admin/videos/abc/approve", true},
		{http.MethodPost, "/api/v1/admin/videos/abc/publish", true},
		{http.MethodPost, "/api/v1/admin/videos/abc/unpublish", true},
		{http.MethodPost, "/api/v1/admin/videos/abc/reject", false},
		{http.MethodGet, "/api/v1/admin/videos", false},
		{http.MethodPost, "/api/v1/auth/login", false},
		{http.MethodGet, "/api/v1/videosx", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			assert.Equal(t, tt.want, isLongRequest(r))
		})
	}
}

func TestWithRequestDeadlines_OutlivesServerWriteTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = io.WriteString(w, "done")
	})

	srv := httptest.NewUnstartedServer(WithRequestDeadlines(slow, 5*time.Second))
	srv.Config.WriteTimeout = 50 * time.Millisecond
	srv.Start()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/admin/videos/abc/publish", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", string(body))

	// Ordinary routes keep the server timeout and lose the response.
	resp, err = http.Get(srv.URL + "/api/v1/site/theme")
	if err == nil {
		_, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}
	assert.Error(t, err)
}

package http

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// WithRequestDeadlines lifts the server's read and write timeouts to long
// for requests that move clip bytes or wait on the video platform: uploads,
// content downloads and the admin publish actions. Other requests keep the
// server defaults. It wraps the router so the deadlines are set on the
// connection's own ResponseWriter.
func WithRequestDeadlines(next http.Handler, long time.Duration) http.Handler {
	if long <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLongRequest(r) {
			deadline := time.Now().Add(long)
			rc := http.NewResponseController(w)
			if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				http.Error(w, "failed to extend read deadline", http.StatusInternalServerError)
				return
			}
			if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
				http.Error(w, "failed to extend write deadline", http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isLongRequest(r *http.Request) bool {
	path := strings.TrimSuffix(r.URL.Path, "/")

	if rest, ok := strings.CutPrefix(path, "/api/v1/videos"); ok {
		parts := strings.Split(strings.TrimPrefix(rest, "/"), "/")
		switch {
		case rest == "":
			return r.Method == http.MethodPost
		case len(parts) == 1:
			return r.Method == http.MethodDelete
		case len(parts) == 2 && parts[1] == "content":
			return r.Method == http.MethodGet || r.Method == http.MethodHead
		}
		return false
	}

	if rest, ok := strings.CutPrefix(path, "/api/v1/admin/videos/"); ok && r.Method == http.MethodPost {
		parts := strings.Split(rest, "/")
		if len(parts) != 2 {
			return false
		}
		switch parts[1] {
		case "approve", "publish", "unpublish":
			return true
		}
	}
	return false
}

package http

import (
	"bytes"
	"context"
	stderrors "errors"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/core/services"
	"reelgate/internal/infrastructure/monitoring"
	"reelgate/internal/infrastructure/repositories/memory"
	"reelgate/internal/infrastructure/storage"
	"reelgate/pkg/config"
	"reelgate/pkg/i18n"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/language"
)

const adminPassword = "open-sesame-42"

var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
	'i', 's', 'o', 'm', 'i', 's', 'o', '2',
}

func mp4Body(size int) []byte {
	body := make([]byte, size)
	copy(body, mp4Header)
	return body
}

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIFixtureWithPlatform(t, nil)
}

// failingPlatform rejects every upload with the same error kind.
type failingPlatform struct {
	kind domain.PlatformErrorKind
}

func (p failingPlatform) Name() string { return "fake" }

func (p failingPlatform) Upload(context.Context, ports.PlatformUpload) (string, error) {
	return "", &domain.PlatformError{Platform: "fake", Op: "upload", Kind: p.kind, Err: stderrors.New("refused")}
}

func (p failingPlatform) Delete(context.Context, string) error { return nil }

func newAPIFixtureWithPlatform(t *testing.T, platform ports.VideoPlatform) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	cfg := config.DefaultConfig()
	cfg.Storage.MaxUploadBytes = 64 << 10
	cfg.Auth.BootstrapAdmins = []string{"root"}

	hash, err := services.HashPassword(adminPassword, bcrypt.MinCost)
	require.NoError(t, err)

	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	users := memory.NewMemoryUserRepository()
	auth := services.NewAuthService("test-secret", cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	userService := services.NewUserService(users, auth, services.UserServiceConfig{
		AdminPasswordHash: hash,
		BootstrapAdmins:   cfg.Auth.BootstrapAdmins,
		BcryptCost:        bcrypt.MinCost,
	}, nil, logger)
	videoService := services.NewVideoService(memory.NewMemoryVideoRepository(), users, store, platform, services.VideoServiceConfig{
		MaxUploadBytes:      cfg.Storage.MaxUploadBytes,
		AllowedContentTypes: cfg.Storage.AllowedContentTypes,
	}, nil, logger)
	siteService := services.NewSiteService(memory.NewMemoryThemeRepository(), memory.NewMemoryPageRepository(), logger)

	reg := prometheus.NewRegistry()
	collector := monitoring.NewPrometheusCollector(reg)

	router := NewRouter(RouterDeps{
		Config:   cfg,
		Auth:     auth,
		Users:    userService,
		Videos:   videoService,
		Site:     siteService,
		Health:   monitoring.NewHealthChecker(),
		Gatherer: reg,
		Metrics:  collector,
		Logger:   logger,
	})
	return &apiFixture{t: t, router: router}
}

type request struct {
	method   string
	path     string
	token    string
	body     interface{}
	raw      io.Reader
	ctype    string
	language string
	headers  map[string]string
}

func (f *apiFixture) do(r request) *httptest.ResponseRecorder {
	f.t.Helper()
	body := r.raw
	if r.body != nil {
		data, err := json.Marshal(r.body)
		require.NoError(f.t, err)
		body = bytes.NewReader(data)
		r.ctype = "application/json"
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.ctype != "" {
		req.Header.Set("Content-Type", r.ctype)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.language != "" {
		req.Header.Set("Accept-Language", r.language)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// register creates an account and returns its access token.
func (f *apiFixture) register(username string) string {
	f.t.Helper()
	w := f.do(request{method: http.MethodPost, path: "/api/v1/auth/register", body: gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	}})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(f.t, w)["access_token"].(string)
}

func (f *apiFixture) upload(token string, content []byte, title string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(f.t, mw.WriteField("title", title))
	require.NoError(f.t, mw.WriteField("tags", "cats, funny"))
	part, err := mw.CreateFormFile("file", "clip.mp4")
	require.NoError(f.t, err)
	_, err = part.Write(content)
	require.NoError(f.t, err)
	require.NoError(f.t, mw.Close())

	return f.do(request{method: http.MethodPost, path: "/api/v1/videos", token: token, raw: &buf, ctype: mw.FormDataContentType()})
}

func videoIDs(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var out struct {
		Videos []domain.Video `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	ids := make([]string, 0, len(out.Videos))
	for _, v := range out.Videos {
		ids = append(ids, string(v.ID))
	}
	return ids
}

func TestHealthReadyMetrics(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusOK, f.do(request{method: http.MethodGet, path: "/health"}).Code)
	assert.Equal(t, http.StatusOK, f.do(request{method: http.MethodGet, path: "/ready"}).Code)

	w := f.do(request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reelgate_http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.register("alice")

	w := f.do(request{method: http.MethodPost, path: "/api/v1/auth/login", body: gin.H{"username": "alice", "password": "wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(request{method: http.MethodPost, path: "/api/v1/auth/login", body: gin.H{"username": "alice", "password": "correct-horse"}})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode(t, w)
	token := login["access_token"].(string)

	w = f.do(request{method: http.MethodPost, path: "/api/v1/auth/refresh", body: gin.H{"refresh_token": login["refresh_token"]}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["access_token"])

	w = f.do(request{method: http.MethodPost, path: "/api/v1/auth/refresh", body: gin.H{"refresh_token": token}})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access tokens are not refresh tokens")

	w = f.do(request{method: http.MethodGet, path: "/api/v1/me", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, w.Body.String(), "password")

	w = f.do(request{method: http.MethodPatch, path: "/api/v1/me", token: token, body: gin.H{"display_name": "Alice A."}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice A.", decode(t, w)["user"].(map[string]interface{})["display_name"])

	w = f.do(request{method: http.MethodPost, path: "/api/v1/auth/register", body: gin.H{
		"username": "alice", "email": "other@example.com", "password": "correct-horse",
	}})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissionAndModeration(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.register("alice")
	bob := f.register("bob")
	admin := f.register("root")

	w := f.upload(alice, mp4Body(4096), "First clip")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Video domain.Video `json:"video"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := string(created.Video.ID)
	assert.Equal(t, domain.VideoStatusPending, created.Video.Status)
	assert.Equal(t, []string{"cats", "funny"}, created.Video.Tags)

	// Pending clips are visible to the uploader and admins only.
	assert.Empty(t, videoIDs(t, f.do(request{method: http.MethodGet, path: "/api/v1/videos"})))
	assert.Empty(t, videoIDs(t, f.do(request{method: http.MethodGet, path: "/api/v1/videos", token: bob})))
	assert.Equal(t, []string{id}, videoIDs(t, f.do(request{method: http.MethodGet, path: "/api/v1/videos", token: alice})))
	assert.Equal(t, http.StatusNotFound, f.do(request{method: http.MethodGet, path: "/api/v1/videos/" + id}).Code)

	// Moderation is admin only.
	assert.Equal(t, http.StatusForbidden, f.do(request{method: http.MethodPost, path: "/api/v1/admin/videos/" + id + "/approve", token: alice}).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(request{method: http.MethodPost, path: "/api/v1/admin/videos/" + id + "/approve"}).Code)

	w = f.do(request{method: http.MethodGet, path: "/api/v1/admin/videos?status=pending", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{id}, videoIDs(t, w))

	w = f.do(request{method: http.MethodPost, path: "/api/v1/admin/videos/" + id + "/reject", token: admin, body: gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(request{method: http.MethodPost, path: "/api/v1/admin/videos/" + id + "/approve", token: admin})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decode(t, w)["video"].(map[string]interface{})["status"])

	assert.Equal(t, []string{id}, videoIDs(t, f.do(request{method: http.MethodGet, path: "/api/v1/videos"})))

	w = f.do(request{method: http.MethodGet, path: "/api/v1/videos/" + id + "/content"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, 4096, w.Body.Len())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clip.mp4")
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))

	w = f.do(request{method: http.MethodGet, path: "/api/v1/videos/" + id + "/content", headers: map[string]string{"Range": "bytes=1000-1099"}})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 1000-1099/4096", w.Header().Get("Content-Range"))
	assert.Equal(t, 100, w.Body.Len())
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))

	// The platform is not configured.
	w = f.do(request{method: http.MethodPost, path: "/api/v1/admin/videos/" + id + "/publish", token: admin})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// Approved clips can only be removed by an admin.
	assert.Equal(t, http.StatusForbidden, f.do(request{method: http.MethodDelete, path: "/api/v1/videos/" + id, token: alice}).Code)
	assert.Equal(t, http.StatusNoContent, f.do(request{method: http.MethodDelete, path: "/api/v1/videos/" + id, token: admin}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(request{method: http.MethodGet, path: "/api/v1/videos/" + id, token: admin}).Code)
}

func TestApproveReportsPublishFailure(t *testing.T) {
	f := newAPIFixtureWithPlatform(t, failingPlatform{kind: domain.PlatformQuotaExceeded})
	alice := f.register("alice")
	admin := f.register("root")

	w := f.upload(alice, mp4Body(4096), "Quota clip")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["video"].(map[string]interface{})["id"].(string)

	w = f.do(request{method: http.MethodPost, path: "/api/v1/admin/videos/" + id + "/approve", token: admin, language: "es", body: gin.H{"publish": true}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	video := body["video"].(map[string]interface{})
	assert.Equal(t, "approved", video["status"])
	assert.Equal(t, "failed", video["publish_state"])
	assert.Equal(t, "quota_exceeded", video["publish_error_code"])
	assert.Equal(t, i18n.Translate(language.Spanish, "platform.quota_exceeded", ""), body["publish_error"])

	w = f.do(request{method: http.MethodGet, path: "/api/v1/videos/" + id, token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["publish_error"])
}

func TestSubmissionRejections(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.register("alice")

	assert.Equal(t, http.StatusUnauthorized, f.upload("", mp4Body(1024), "Anon").Code)

	w := f.upload(alice, []byte("just some text, not a video at all"), "Text")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = f.upload(alice, mp4Body(128<<10), "Huge")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = f.upload(alice, mp4Body(1024), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyAdminPassword(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.register("alice")

	path := "/api/v1/admin/verify-password"
	assert.Equal(t, http.StatusUnauthorized, f.do(request{method: http.MethodPost, path: path, body: gin.H{"password": adminPassword}}).Code)

	w := f.do(request{method: http.MethodPost, path: path, token: alice, body: gin.H{"password": "guess"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["valid"])

	w = f.do(request{method: http.MethodPost, path: path, token: alice, body: gin.H{"password": adminPassword}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "admin", body["user"].(map[string]interface{})["role"])

	promoted := body["access_token"].(string)
	assert.Equal(t, http.StatusOK, f.do(request{method: http.MethodGet, path: "/api/v1/admin/users", token: promoted}).Code)
}

func TestSitePages(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.register("root")

	w := f.do(request{method: http.MethodGet, path: "/api/v1/site/theme"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reelgate", decode(t, w)["theme"].(map[string]interface{})["site_name"])

	w = f.do(request{method: http.MethodPut, path: "/api/v1/admin/pages/about", token: admin, body: gin.H{
		"title": "About", "body": "# Hello\n\n<script>alert(1)</script>", "published": false,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(request{method: http.MethodGet, path: "/api/v1/site/pages/about"}).Code)
	assert.Equal(t, http.StatusOK, f.do(request{method: http.MethodGet, path: "/api/v1/site/pages/about", token: admin}).Code)

	w = f.do(request{method: http.MethodPut, path: "/api/v1/admin/pages/about", token: admin, body: gin.H{
		"title": "About", "body": "# Hello\n\n<script>alert(1)</script>", "published": true,
	}})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(request{method: http.MethodGet, path: "/api/v1/site/pages/about/html"})
	require.Equal(t, http.StatusOK, w.Code)
	html := decode(t, w)["html"].(string)
	assert.Contains(t, html, "<h1")
	assert.NotContains(t, html, "<script>")

	assert.Equal(t, http.StatusNoContent, f.do(request{method: http.MethodDelete, path: "/api/v1/admin/pages/about", token: admin}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(request{method: http.MethodGet, path: "/api/v1/site/pages/about", token: admin}).Code)
}

func TestErrorsAreLocalized(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(request{method: http.MethodGet, path: "/api/v1/videos/nope", language: "es"})
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "NOT_FOUND", body["error"])
	assert.Equal(t, i18n.Translate(language.Spanish, "video.not_found", ""), body["message"])
}

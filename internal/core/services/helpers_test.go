package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

// mp4Header is enough of an ISO base media file for content sniffing.
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

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return int64(len(data)), nil
}

func (s *memStorage) Load(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) Name() string { return "mock" }

func (m *mockPlatform) Upload(ctx context.Context, upload ports.PlatformUpload) (string, error) {
	args := m.Called(ctx, upload)
	return args.String(0), args.Error(1)
}

func (m *mockPlatform) Delete(ctx context.Context, platformID string) error {
	return m.Called(ctx, platformID).Error(0)
}

type recordingMetrics struct {
	mu          sync.Mutex
	submissions []string
	decisions   []string
	verifies    []bool
}

func (m *recordingMetrics) RecordSubmission(outcome string, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, outcome)
}

func (m *recordingMetrics) RecordModeration(decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision)
}

func (m *recordingMetrics) RecordAdminVerify(valid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifies = append(m.verifies, valid)
}

var (
	admin = domain.Viewer{UserID: "admin-1", Role: domain.RoleAdmin}
	alice = domain.Viewer{UserID: "alice", Role: domain.RoleUser}
	bob   = domain.Viewer{UserID: "bob", Role: domain.RoleUser}
	guest = domain.Viewer{}
)

func seedUser(t *testing.T, repo ports.UserRepository, viewer domain.Viewer) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), &domain.User{
		ID:        viewer.UserID,
		Username:  string(viewer.UserID),
		Email:     string(viewer.UserID) + "@example.com",
		Role:      viewer.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

type videoFixture struct {
	service  ports.VideoService
	videos   ports.VideoRepository
	users    ports.UserRepository
	storage  *memStorage
	platform *mockPlatform
	metrics  *recordingMetrics
}

func newVideoFixture(t *testing.T, withPlatform bool) *videoFixture {
	t.Helper()
	f := &videoFixture{
		videos:  memory.NewMemoryVideoRepository(),
		users:   memory.NewMemoryUserRepository(),
		storage: newMemStorage(),
		metrics: &recordingMetrics{},
	}
	var platform ports.VideoPlatform
	if withPlatform {
		f.platform = &mockPlatform{}
		platform = f.platform
	}
	for _, v := range []domain.Viewer{admin, alice, bob} {
		seedUser(t, f.users, v)
	}
	f.service = NewVideoService(f.videos, f.users, f.storage, platform, VideoServiceConfig{
		MaxUploadBytes:      64 * 1024,
		AllowedContentTypes: []string{"video/mp4", "video/webm"},
	}, f.metrics, zaptest.NewLogger(t).Sugar())
	return f
}

func (f *videoFixture) submit(t *testing.T, viewer domain.Viewer, title string) *domain.Video {
	t.Helper()
	video, err := f.service.Submit(context.Background(), viewer, ports.SubmitInput{
		Title:        title,
		OriginalName: title + ".mp4",
		Body:         bytes.NewReader(mp4Body(4096)),
	})
	require.NoError(t, err)
	return video
}

const testBcryptCost = bcrypt.MinCost

func nopLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

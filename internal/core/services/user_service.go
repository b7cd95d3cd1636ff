package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/pkg/utils"
	"reelgate/pkg/validation"

	"go.uber.org/zap"
)

type UserServiceConfig struct {
	// AdminPasswordHash is the bcrypt hash checked by VerifyAdminPassword.
	// Empty disables the check.
	AdminPasswordHash string
	BootstrapAdmins   []string
	BcryptCost        int
}

type userService struct {
	users   ports.UserRepository
	auth    AuthService
	cfg     UserServiceConfig
	admins  map[string]bool
	metrics AuthMetrics
	logger  *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(
	users ports.UserRepository,
	auth AuthService,
	cfg UserServiceConfig,
	metrics AuthMetrics,
	logger *zap.SugaredLogger,
) ports.UserService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	admins := make(map[string]bool, len(cfg.BootstrapAdmins))
	for _, name := range cfg.BootstrapAdmins {
		admins[utils.NormalizeUsername(name)] = true
	}
	return &userService{
		users:   users,
		auth:    auth,
		cfg:     cfg,
		admins:  admins,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *userService) Register(ctx context.Context, input ports.RegisterInput) (*ports.Session, error) {
	username := strings.TrimSpace(input.Username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, domain.NewValidationError("username", err)
	}
	email := utils.NormalizeEmail(input.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, domain.NewValidationError("email", err)
	}
	if err := validation.ValidatePassword(input.Password); err != nil {
		return nil, domain.NewValidationError("password", err)
	}

	hash, err := HashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := domain.RoleUser
	if s.admins[utils.NormalizeUsername(username)] {
		role = domain.RoleAdmin
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           domain.UserID(utils.NewID()),
		Username:     username,
		Email:        email,
		DisplayName:  username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("User registered",
		"user_id", user.ID,
		"username", user.Username,
		"role", user.Role,
	)
	return s.session(user)
}

func (s *userService) Login(ctx context.Context, username, password string) (*ports.Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		// Burn the same bcrypt time as a real comparison.
		_, _ = CheckPassword(s.fallbackHash(), password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("failed to check password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if user.Role != domain.RoleAdmin && s.admins[utils.NormalizeUsername(user.Username)] {
		user.Role = domain.RoleAdmin
		user.UpdatedAt = time.Now().UTC()
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Infow("Bootstrap admin promoted on login", "user_id", user.ID)
	}

	return s.session(user)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*ports.Session, error) {
	claims, err := s.auth.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	// The role is read again so promotions and demotions take effect.
	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *userService) VerifyAdminPassword(ctx context.Context, viewer domain.Viewer, password string) (*ports.AdminVerification, error) {
	if viewer.Anonymous() {
		return nil, domain.ErrInvalidToken
	}
	if s.cfg.AdminPasswordHash == "" {
		return nil, domain.ErrAdminPasswordUnset
	}

	ok, err := CheckPassword(s.cfg.AdminPasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("admin password hash is unusable: %w", err)
	}
	s.metrics.RecordAdminVerify(ok)
	if !ok {
		s.logger.Warnw("Admin password check failed", "user_id", viewer.UserID)
		return &ports.AdminVerification{Valid: false}, nil
	}

	user, err := s.users.GetByID(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if user.Role != domain.RoleAdmin {
		user.Role = domain.RoleAdmin
		user.UpdatedAt = time.Now().UTC()
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Infow("User promoted by admin password", "user_id", user.ID)
	}

	session, err := s.session(user)
	if err != nil {
		return nil, err
	}
	return &ports.AdminVerification{Valid: true, Session: session}, nil
}

func (s *userService) GetProfile(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) UpdateProfile(ctx context.Context, viewer domain.Viewer, update domain.ProfileUpdate) (*domain.User, error) {
	if viewer.Anonymous() {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if err := validation.ValidateStringLength(name, 1, validation.MaxDisplayNameLength, "display name"); err != nil {
			return nil, domain.NewValidationError("display_name", err)
		}
		user.DisplayName = name
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if err := validation.ValidateStringLength(bio, 0, validation.MaxBioLength, "bio"); err != nil {
			return nil, domain.NewValidationError("bio", err)
		}
		user.Bio = bio
	}
	if update.AvatarURL != nil {
		avatar := strings.TrimSpace(*update.AvatarURL)
		if err := validation.ValidateOptionalURL(avatar); err != nil {
			return nil, domain.NewValidationError("avatar_url", err)
		}
		user.AvatarURL = avatar
	}

	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, viewer domain.Viewer) ([]*domain.User, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.users.List(ctx)
}

func (s *userService) SetRole(ctx context.Context, viewer domain.Viewer, id domain.UserID, role domain.UserRole) (*domain.User, error) {
	if !viewer.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if !role.Valid() {
		return nil, &domain.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	if id == viewer.UserID && role != domain.RoleAdmin {
		return nil, domain.ErrCannotDemoteSelf
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Infow("User role changed",
		"user_id", user.ID,
		"role", role,
		"changed_by", viewer.UserID,
	)
	return user, nil
}

func (s *userService) Promote(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.Role == domain.RoleAdmin {
		return user, nil
	}
	user.Role = domain.RoleAdmin
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Infow("User promoted", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *userService) session(user *domain.User) (*ports.Session, error) {
	tokens, err := s.auth.IssueTokens(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return &ports.Session{User: user, Tokens: tokens}, nil
}

// fallbackHash is compared against when the username does not exist.
func (s *userService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := HashPassword(utils.NewID(), s.cfg.BcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

package services

import (
	"errors"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrExpiredToken = errors.New("token expired")

const refreshTokenType = "refresh"

type AuthService interface {
	GenerateToken(userID domain.UserID, username string, role domain.UserRole) (string, error)
	GenerateRefreshToken(userID domain.UserID) (string, error)
	// ValidateToken accepts access tokens only.
	ValidateToken(tokenString string) (*Claims, error)
	// ValidateRefreshToken accepts refresh tokens only.
	ValidateRefreshToken(tokenString string) (*Claims, error)
	IssueTokens(user *domain.User) (ports.TokenPair, error)
}

type Claims struct {
	UserID    domain.UserID   `json:"user_id"`
	Username  string          `json:"username,omitempty"`
	Role      domain.UserRole `json:"role,omitempty"`
	TokenType string          `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Viewer converts access token claims into the caller identity.
func (c *Claims) Viewer() domain.Viewer {
	return domain.Viewer{UserID: c.UserID, Role: c.Role}
}

type authService struct {
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewAuthService(
	jwtSecret string,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
) AuthService {
	return &authService{
		jwtSecret:       []byte(jwtSecret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

func (s *authService) GenerateToken(userID domain.UserID, username string, role domain.UserRole) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) GenerateRefreshToken(userID domain.UserID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, domain.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, domain.ErrInvalidToken
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType == refreshTokenType {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) IssueTokens(user *domain.User) (ports.TokenPair, error) {
	access, err := s.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return ports.TokenPair{}, err
	}
	refresh, err := s.GenerateRefreshToken(user.ID)
	if err != nil {
		return ports.TokenPair{}, err
	}
	return ports.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTokenTTL.Seconds()),
	}, nil
}

// HashPassword bcrypt-hashes password. A cost outside bcrypt's range falls
// back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. Malformed hashes are
// returned as errors so a broken configuration is not mistaken for a wrong
// password.
func CheckPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

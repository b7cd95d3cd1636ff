package middleware

import (
	"net/http"
	"strings"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/services"
	"reelgate/pkg/errors"
	"reelgate/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			RespondError(c, errors.NewUnauthorizedError("authorization header required"))
			return
		}

		token := BearerToken(c.Request)
		if token == "" {
			RespondError(c, errors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			RespondError(c, ToAppError(err))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the caller when a valid token is sent and
// otherwise lets the request through anonymously.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c.Request); token != "" {
			if claims, err := authService.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := ViewerFromContext(c)
		if viewer.Anonymous() {
			RespondError(c, errors.NewUnauthorizedError("authentication required"))
			return
		}
		if viewer.Role != role {
			RespondError(c, ToAppError(domain.ErrForbidden))
			return
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *services.Claims) {
	c.Set(userIDKey, claims.UserID)
	c.Set(roleKey, claims.Role)
	c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), string(claims.UserID)))
}

// ViewerFromContext returns the authenticated caller, or an anonymous viewer.
func ViewerFromContext(c *gin.Context) domain.Viewer {
	userID, _ := c.Get(userIDKey)
	role, _ := c.Get(roleKey)

	id, _ := userID.(domain.UserID)
	r, _ := role.(domain.UserRole)
	return domain.Viewer{UserID: id, Role: r}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// AdminContextKey is the key used to store the admin claims in Gin context
const AdminContextKey = "admin"

func abortUnauthorized(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AdminAuth validates a bearer token issued by POST /admin/login and requires the admin role
func AdminAuth(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		})

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Auth failed: missing authorization header")
			abortUnauthorized(c, http.StatusUnauthorized, "missing_auth_header", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			log.Warn("Auth failed: invalid authorization format")
			abortUnauthorized(c, http.StatusUnauthorized, "invalid_auth_format", "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := jwtService.ValidateAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if jwt.IsExpired(err) {
				log.Warn("Auth failed: token expired")
				abortUnauthorized(c, http.StatusUnauthorized, "token_expired", "Access token has expired. Please log in again.")
				return
			}
			log.WithError(err).Warn("Auth failed: invalid token")
			abortUnauthorized(c, http.StatusUnauthorized, "invalid_token", "Invalid or malformed token")
			return
		}

		if !claims.HasRole(jwt.RoleAdmin) {
			log.WithField("email", claims.Email).Warn("Auth failed: missing admin role")
			abortUnauthorized(c, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}

		c.Set(AdminContextKey, claims)
		c.Next()
	}
}

// GetAdminClaims returns the claims stored by AdminAuth
func GetAdminClaims(c *gin.Context) (*jwt.Claims, bool) {
	value, exists := c.Get(AdminContextKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*jwt.Claims)
	return claims, ok
}

package middleware

import (
	"strings"

	"github.com/serverestaa/instagram-client/pkg/errors"
	"github.com/serverestaa/instagram-client/pkg/jwt"
	"github.com/serverestaa/instagram-client/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JWTAuth checks that the request has a valid JWT and adds claims to the context
func JWTAuth(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userId", claims.UserID)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// CurrentUserID returns the authenticated user id set by JWTAuth
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userId")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

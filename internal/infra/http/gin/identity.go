package ginserver

import (
	"context"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentme-reservations/internal/app/access"
)

// Identity headers are set by the upstream identity provider.
const (
	UserIDHeader    = "X-User-ID"
	UserRolesHeader = "X-User-Roles"
)

// Identity attaches the asserted principal to the request context. Requests
// without a user id stay anonymous and are rejected by the buses when needed.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID != "" {
			p := access.Principal{UserID: userID, Roles: access.ParseRoles(c.GetHeader(UserRolesHeader))}
			c.Request = c.Request.WithContext(access.WithPrincipal(c.Request.Context(), p))
		}
		c.Next()
	}
}

// CallerID names the principal in access logs.
func CallerID(ctx context.Context) string {
	p, ok := access.FromContext(ctx)
	if !ok {
		return ""
	}
	return p.UserID
}

func requirePrincipal(c *gin.Context) (access.Principal, bool) {
	p, ok := access.FromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return access.Principal{}, false
	}
	return p, true
}

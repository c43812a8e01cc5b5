package security

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// ContextKeyUserID is the gin context key for the authenticated user ID.
const ContextKeyUserID = "userID"

// DefaultIdentityHeader is the header the trusted gateway sets to the
// authenticated participant id when no override is configured.
const DefaultIdentityHeader = "X-Authenticated-User"

// GetUserID returns the authenticated user ID from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// GatewayAuthMiddleware returns a gin middleware that trusts the identity
// header injected by the API gateway. The service never validates tokens
// itself; the gateway strips any client-supplied copy of the header before
// forwarding, so a non-empty value is authoritative. Requests without it are
// rejected with 401.
func GatewayAuthMiddleware(headerName string) gin.HandlerFunc {
	if headerName == "" {
		headerName = DefaultIdentityHeader
	}
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerName))
		if userID == "" {
			log.Info("Auth rejected: missing identity header", "header", headerName, "method", c.Request.Method, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + headerName + " header"})
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/folio/internal/services"
)

const viewerIDKey = "viewer_id"

// OptionalViewer attaches the viewer id from a valid bearer token. Missing or
// invalid tokens leave the request anonymous; recommendations never require
// authentication.
func OptionalViewer(authService *services.AuthService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authService.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.Next()
			return
		}

		viewerID, err := authService.ViewerFromToken(tokenString)
		if err != nil {
			logger.WithError(err).Debug("Ignoring unusable bearer token")
			c.Next()
			return
		}

		c.Set(viewerIDKey, viewerID)
		c.Next()
	}
}

func ViewerFromContext(c *gin.Context) (int64, bool) {
	v, exists := c.Get(viewerIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

package middlewares

import (
	"staybook-server/services/chat-api/internal/infrastructure/metrics"
	"staybook-server/services/chat-api/internal/interfaces/httpserver/responses"
	"staybook-server/services/chat-api/internal/utils/platformerrors"

	"github.com/gin-gonic/gin"
)

// RequireAdmin ensures the resolved identity carries the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := IdentityFromContext(c)
		if !ok {
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "9c1e3b5d-7f0a-4c2e-8b6d-0a2c4e6b8d04")
			return
		}

		if !ident.IsAdmin() {
			metrics.RecordAccessDenied(string(platformerrors.ErrorTypeForbidden))
			responses.HandleNewError(c, platformerrors.ErrorTypeForbidden, "admin access required", "4e6b8d0a-2c3e-4f5a-9b7d-1c3e5a7b9d06")
			return
		}

		c.Next()
	}
}

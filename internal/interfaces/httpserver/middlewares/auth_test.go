package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook-server/services/chat-api/internal/domain/identity"
)

func identityCaptureRouter(t *testing.T) (*gin.Engine, *identity.Identity, *bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	var captured identity.Identity
	var resolved bool
	engine.Use(ResolveIdentity(nil, "support-admin", zerolog.Nop()))
	engine.GET("/whoami", func(c *gin.Context) {
		captured, resolved = IdentityFromContext(c)
		c.Status(http.StatusOK)
	})
	return engine, &captured, &resolved
}

func TestResolveIdentityGuestHeader(t *testing.T) {
	engine, captured, resolved := identityCaptureRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Guest-Conversation", "conv_abc")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *resolved)
	assert.Equal(t, identity.KindGuest, captured.Kind)
	assert.Equal(t, "conv_abc", captured.ConversationID)
}

func TestResolveIdentityAnonymous(t *testing.T) {
	engine, _, resolved := identityCaptureRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, *resolved)
}

func TestRequireIdentityRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ResolveIdentity(nil, "support-admin", zerolog.Nop()))
	engine.GET("/whoami", RequireIdentity(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-Guest-Conversation", "conv_abc")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdminRejectsNonAdmins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/whoami", func(c *gin.Context) {
		switch c.GetHeader("X-Test-Identity") {
		case "admin":
			c.Set("identity", identity.Admin("admin_1"))
		case "guest":
			c.Set("identity", identity.Guest("conv_abc"))
		}
		c.Next()
	}, RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for header, want := range map[string]int{
		"":      http.StatusUnauthorized,
		"guest": http.StatusForbidden,
		"admin": http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("X-Test-Identity", header)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "identity %q", header)
	}
}

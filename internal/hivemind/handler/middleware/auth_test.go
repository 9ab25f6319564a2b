package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine(cfg *AuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.Use(BearerAuth(cfg))
	g.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	g.GET("/v1/sessions", func(c *gin.Context) { c.Status(http.StatusOK) })
	return g
}

func do(g *gin.Engine, path, remote, auth string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w.Code
}

func TestBearerAuth(t *testing.T) {
	g := newEngine(&AuthConfig{Enabled: true, Token: "s3cret"})
	const remote = "10.0.0.7:5555"

	assert.Equal(t, http.StatusUnauthorized, do(g, "/v1/sessions", remote, ""))
	assert.Equal(t, http.StatusUnauthorized, do(g, "/v1/sessions", remote, "Basic abc"))
	assert.Equal(t, http.StatusUnauthorized, do(g, "/v1/sessions", remote, "Bearer wrong"))
	assert.Equal(t, http.StatusOK, do(g, "/v1/sessions", remote, "Bearer s3cret"))
	assert.Equal(t, http.StatusOK, do(g, "/healthz", remote, ""))
	assert.Equal(t, http.StatusOK, do(g, "/v1/sessions", "127.0.0.1:4000", ""))
}

func TestBearerAuth_DisabledOrNoToken(t *testing.T) {
	t.Setenv(TokenEnv, "")
	const remote = "10.0.0.7:5555"

	assert.Equal(t, http.StatusOK, do(newEngine(&AuthConfig{Enabled: false, Token: "x"}), "/v1/sessions", remote, ""))
	assert.Equal(t, http.StatusOK, do(newEngine(&AuthConfig{Enabled: true}), "/v1/sessions", remote, ""))
}

func TestResolveToken_EnvFallback(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")

	assert.Equal(t, "from-env", (&AuthConfig{}).ResolveToken())
	assert.Equal(t, "explicit", (&AuthConfig{Token: "explicit"}).ResolveToken())
}

package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/hivelink/internal/pkg/core"
	"github.com/kiosk404/hivelink/pkg/errorx"
)

// TokenEnv is read when AuthConfig.Token is empty.
const TokenEnv = "HIVEMIND_TOKEN"

// ErrUnauthorized is the code written for rejected requests.
const ErrUnauthorized = 100003

func init() {
	errorx.MustRegister(unauthorizedCoder{})
}

type unauthorizedCoder struct{}

func (unauthorizedCoder) Code() int         { return ErrUnauthorized }
func (unauthorizedCoder) HTTPStatus() int   { return http.StatusUnauthorized }
func (unauthorizedCoder) String() string    { return "Authentication required" }
func (unauthorizedCoder) Reference() string { return "" }

// AuthConfig holds configuration for Bearer token authentication.
type AuthConfig struct {
	// Enabled controls whether authentication is enforced.
	Enabled bool `json:"enabled"`

	// Token is the expected Bearer token value.
	// Can also be set via HIVEMIND_TOKEN environment variable.
	Token string `json:"token"`
}

// ResolveToken returns the effective token, checking env vars as fallback.
func (c *AuthConfig) ResolveToken() string {
	if c.Token != "" {
		return c.Token
	}
	return os.Getenv(TokenEnv)
}

// BearerAuth returns a Gin middleware that enforces Bearer token authentication.
//
//   - tokens are compared with crypto/subtle.ConstantTimeCompare
//   - loopback clients are let through
//   - /healthz is always reachable
func BearerAuth(cfg *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		token := cfg.ResolveToken()
		if token == "" {
			c.Next()
			return
		}

		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}

		if isLocalRequest(c.Request) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			reject(c, "missing Authorization header")
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			reject(c, "invalid Authorization header format, expected 'Bearer <token>'")
			return
		}

		provided := authHeader[len(prefix):]
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			reject(c, "invalid bearer token")
			return
		}

		c.Next()
	}
}

func reject(c *gin.Context, msg string) {
	core.WriteResponse(c, errorx.WithCode(ErrUnauthorized, "%s", msg), nil)
	c.Abort()
}

// isLocalRequest checks if a request originates from loopback address.
func isLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

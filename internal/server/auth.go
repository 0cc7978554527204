package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiKeyHeader is the header API Gateway reads usage plan keys from.
const apiKeyHeader = "x-api-key"

// Authenticator checks the API key sent with each request.
type Authenticator struct {
	key string
}

// NewAuthenticator creates an Authenticator for key.
// If key is empty, authentication is disabled.
func NewAuthenticator(key string) *Authenticator {
	return &Authenticator{key: key}
}

// Enabled returns true if an API key is configured.
func (a *Authenticator) Enabled() bool {
	return a.key != ""
}

// Verify reports whether r carries the configured key.
func (a *Authenticator) Verify(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	got := r.Header.Get(apiKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.key)) == 1
}

// Middleware rejects requests without a valid key the way API Gateway does.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Verify(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			return
		}
		c.Next()
	}
}

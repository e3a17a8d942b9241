package http

import (
	"net/http"
	"strings"

	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionTokenKey = "token"
	userKey         = "user"
)

// Credential returns the token presented by the client: the Authorization
// bearer header, then the ?token= query parameter, then the cookie session.
func Credential(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if _, ok := c.Get(sessions.DefaultKey); ok {
		if token, ok := sessions.Default(c).Get(sessionTokenKey).(string); ok {
			return token
		}
	}
	return ""
}

// Authenticate resolves the request credential. A rejected credential ends
// the request with 401; no credential continues anonymously.
func Authenticate(a auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.Authenticate(Credential(c))
		if err != nil {
			log.Info().Str("module", "transport.http").Str("path", c.FullPath()).Err(err).Msg("credential rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.RejectUnauthenticated})
			return
		}
		if user != nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// CurrentUser is the user set by Authenticate, or nil.
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

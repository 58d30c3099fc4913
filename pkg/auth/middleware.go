package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	claimsKey = "claims"
	stateKey  = "oauth_state"

	// Anonymous is the session key of requests without a valid token.
	Anonymous = "anonymous"
)

// SetCookie stores token in the session cookie.
func (m *Manager) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.config.CookieName, token, int(m.config.TTL.Seconds()), "/", "", m.config.SecureCookie, true)
}

func (m *Manager) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.config.CookieName, "", -1, "/", "", m.config.SecureCookie, true)
}

// SetState remembers the oauth state for the callback.
func (m *Manager) SetState(c *gin.Context, state string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateKey, state, 600, "/", "", m.config.SecureCookie, true)
}

// CheckState compares state with the remembered value and forgets it.
func (m *Manager) CheckState(c *gin.Context, state string) bool {
	want, err := c.Cookie(stateKey)
	c.SetCookie(stateKey, "", -1, "/", "", m.config.SecureCookie, true)
	return err == nil && want != "" && want == state
}

// Identify attaches the claims of a valid session cookie, or an
// Authorization bearer token, to the request. It never rejects.
func (m *Manager) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(m.config.CookieName)
		if err != nil || token == "" {
			if h := c.GetHeader("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				token = h[7:]
			}
		}
		if token != "" {
			if claims, err := m.Verify(token); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// Required rejects requests that Identify did not authenticate.
func Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// SessionKey names the session state of the request.
func SessionKey(c *gin.Context) string {
	if claims, ok := ClaimsFrom(c); ok {
		return claims.Subject
	}
	return Anonymous
}

package middleware

import (
	"strings"

	"floatchat/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	SessionCookieName = "floatchat_session"
	SessionHeaderName = "X-Session-ID"
	CookieMaxAge      = 30 * 24 * 60 * 60 // 30 days
)

// SessionKey is the gin context key holding the session id.
const SessionKey = "sessionID"

// SessionMiddleware resolves the session from the X-Session-ID header or the
// session cookie, issuing a new id when neither holds a valid one.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeaderName)
		if !utils.ValidSessionID(sessionID) {
			sessionID, _ = c.Cookie(SessionCookieName)
		}
		if !utils.ValidSessionID(sessionID) {
			sessionID = utils.GenerateSessionID()
		}

		c.SetCookie(SessionCookieName, sessionID, CookieMaxAge, "/", "", false, true)
		c.Set(SessionKey, sessionID)
		c.Next()
	}
}

// BodySessionMiddleware applies the "session" field of a JSON body over the
// session SessionMiddleware resolved, so rate limiting keys on the
// conversation the request targets. The body stays cached for the handler's
// ShouldBindBodyWith. Invalid values are left for the handler to reject.
func BodySessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Session string `json:"session"`
		}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err == nil {
			if s := strings.TrimSpace(body.Session); utils.ValidSessionID(s) {
				c.Set(SessionKey, s)
			}
		}
		c.Next()
	}
}

// SessionID returns the session resolved by SessionMiddleware.
func SessionID(c *gin.Context) string {
	return c.GetString(SessionKey)
}

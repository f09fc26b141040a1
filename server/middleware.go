package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"hk_bids/session"
)

const (
	sessionCookie     = "hk_session"
	sessionContextKey = "hk-session"
	sessionMaxAge     = 7 * 24 * time.Hour
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// sessionMiddleware attaches the vendor session named by the cookie,
// issuing a new uuid when the cookie is missing or malformed. Each batch
// link gets its own session under the same cookie, so submitting one round
// does not lock the vendor out of the next.
func sessionMiddleware(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if _, perr := uuid.Parse(id); err != nil || perr != nil {
			id = uuid.New().String()
		}

		sess, err := manager.Get(c.Request.Context(), sessionKey(id, linkScope(c)))
		if err != nil {
			zap.S().Errorf("Session %s: %v", id, err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, id, int(sessionMaxAge.Seconds()), "/", "", c.Request.TLS != nil, true)
		c.Set(sessionContextKey, sess)

		c.Next()

		if err := manager.Save(c.Request.Context(), sess); err != nil {
			zap.S().Warnf("Session %s: %v", id, err)
		}
	}
}

// linkScope is the batch a link is scoped to. Auth links take precedence
// over batch ids and cover every batch.
func linkScope(c *gin.Context) string {
	q := formQuery(c)
	if q.Get("auth") != "" {
		return ""
	}
	return q.Get("bid")
}

func sessionKey(cookie, scope string) string {
	if scope == "" {
		return cookie
	}
	return cookie + "|" + scope
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionContextKey).(*session.Session)
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"hk_bids/models"
	"hk_bids/services"
)

const (
	defaultAdminLimit = 50
	maxAdminLimit     = 500
)

// Ledger answers read-only questions about past submissions.
type Ledger interface {
	ListSubmissions(ctx context.Context, bidID string, limit int) ([]models.Submission, error)
	GetSessionLogs(sessionID string) ([]models.SessionEvent, error)
}

// adminOnly lets through requests that carry the auth token. Batch links do
// not open admin routes.
func (s *Server) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		grant, err := s.deps.Guard.Check(c.Request.Context(), c.Request.URL.Query())
		if err != nil {
			if errors.Is(err, models.ErrAccessDenied) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if grant.Mode != services.GrantModeAuth {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleListSubmissions(c *gin.Context) {
	limit := defaultAdminLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxAdminLimit)
	}

	subs, err := s.deps.Ledger.ListSubmissions(c.Request.Context(), c.Query("batch"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

func (s *Server) handleSessionEvents(c *gin.Context) {
	events, err := s.deps.Ledger.GetSessionLogs(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []models.SessionEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "events": events})
}

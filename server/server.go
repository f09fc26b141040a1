package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"hk_bids/i18n"
	"hk_bids/models"
	"hk_bids/services"
	"hk_bids/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Guard decides whether a link may open the form.
type Guard interface {
	Check(ctx context.Context, query map[string][]string) (services.Grant, error)
}

// RowLoader loads the joined bid rows for a batch.
type RowLoader interface {
	Load(ctx context.Context, batchID string) ([]models.Row, error)
}

// RowEnricher attaches listing details to rows.
type RowEnricher interface {
	EnrichRows(ctx context.Context, rows []models.Row) []models.Row
}

// Submissions appends bid batches and serves receipts.
type Submissions interface {
	session.Appender
	Receipt(ctx context.Context, id uuid.UUID) (*models.Submission, error)
}

// EventLog records per-session audit lines.
type EventLog interface {
	Log(sessionID string, level models.LogLevel, message string) error
}

// Deps is everything the web layer talks to.
type Deps struct {
	Guard       Guard
	Reference   RowLoader
	Enricher    RowEnricher
	Submissions Submissions
	Sessions    *session.Manager
	Catalog     *i18n.Catalog
	Health      *services.HealthService
	Events      EventLog
	Ledger      Ledger

	LogoURL  string
	Step     float64
	Location *time.Location
	Now      func() time.Time
}

type Server struct {
	deps   Deps
	engine *gin.Engine
}

func New(deps Deps) (*Server, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestLogger(), gin.Recovery())
	engine.SetHTMLTemplate(tmpl)

	s := &Server{deps: deps, engine: engine}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	pages := s.engine.Group("/")
	pages.Use(sessionMiddleware(s.deps.Sessions))
	pages.GET("/", s.handleIndex)
	pages.POST("/company", s.handleCompany)
	pages.POST("/submit", s.handleSubmit)
	pages.GET("/receipt/:file", s.handleReceipt)

	if s.deps.Ledger != nil {
		admin := s.engine.Group("/admin")
		admin.Use(s.adminOnly())
		admin.GET("/submissions", s.handleListSubmissions)
		admin.GET("/sessions/:id/events", s.handleSessionEvents)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infof("Server: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		zap.S().Info("Server: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logEvent(sessionID string, level models.LogLevel, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case models.LogLevelError:
		zap.S().Errorf("Session %s: %s", sessionID, msg)
	case models.LogLevelWarn:
		zap.S().Warnf("Session %s: %s", sessionID, msg)
	default:
		zap.S().Infof("Session %s: %s", sessionID, msg)
	}
	if s.deps.Events != nil {
		if err := s.deps.Events.Log(sessionID, level, msg); err != nil {
			zap.S().Warnf("Session %s: event log failed: %v", sessionID, err)
		}
	}
}

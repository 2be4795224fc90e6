// Package server exposes the catalog and the analyzer over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/suduli/AI-ASIL-Analyser/internal/catalog"
	"github.com/suduli/AI-ASIL-Analyser/internal/core"
)

const (
	sessionCookie = "asil_session"
	sessionKey    = "session_id"

	shutdownTimeout = 10 * time.Second
)

// Options configure a Server.
type Options struct {
	// SessionSecret signs the session cookie. A random secret is used when empty.
	SessionSecret string
	// AdminToken guards mutating routes. Mutations are open when empty.
	AdminToken string
	// MaxSessions bounds the analysis sessions kept in memory.
	MaxSessions int
	Logger      core.Logger
}

// Server serves the API for one analyzer and its catalog.
type Server struct {
	analyzer  *core.Analyzer
	catalog   *catalog.Catalog
	sessions  *core.SessionStore
	logger    core.Logger
	secret    []byte
	adminHash []byte
}

// New builds a server. The admin token is kept only as a bcrypt hash.
func New(analyzer *core.Analyzer, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = core.DefaultLogger()
	}

	secret := []byte(opts.SessionSecret)
	if len(secret) == 0 {
		id, err := newRequestID()
		if err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		secret = []byte(id)
		logger.Warn("no session secret configured, sessions will not survive a restart")
	}

	s := &Server{
		analyzer: analyzer,
		catalog:  analyzer.Catalog(),
		sessions: core.NewSessionStore(analyzer, opts.MaxSessions),
		logger:   logger,
		secret:   secret,
	}
	if opts.AdminToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminToken), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin token: %w", err)
		}
		s.adminHash = hash
	}
	return s, nil
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.requestLogger())

	store := cookie.NewStore(s.secret)
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionCookie, store))

	api := r.Group("/api")
	api.GET("/health", s.health)
	api.GET("/matrix", s.matrix)
	api.GET("/stats", s.stats)

	api.GET("/components", s.listComponents)
	api.GET("/components/export.csv", s.exportCatalog)
	api.GET("/components/:id", s.getComponent)

	api.POST("/analyze", s.analyze)
	api.GET("/analyses/:id", s.getAnalysis)
	api.GET("/analyses/:id/export", s.exportAnalysis)
	api.PUT("/analyses/:id/overrides", s.setOverrides)

	admin := api.Group("")
	admin.Use(s.requireAdmin())
	admin.POST("/components", s.createComponent)
	admin.PUT("/components/:id", s.updateComponent)
	admin.DELETE("/components/:id", s.deleteComponent)
	admin.POST("/components/:id/adopt", s.adoptRating)
	admin.POST("/analyses/:id/save", s.saveAnalysis)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("api shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

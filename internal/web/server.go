package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/holelung/Face-recognition-attendance-check/internal/attendance"
	"github.com/holelung/Face-recognition-attendance-check/internal/config"
	"github.com/holelung/Face-recognition-attendance-check/internal/database"
	"github.com/holelung/Face-recognition-attendance-check/internal/registrar"
	"github.com/holelung/Face-recognition-attendance-check/internal/session"
	"github.com/holelung/Face-recognition-attendance-check/internal/web/middleware"
)

// Dependencies are the engine components served over HTTP.
type Dependencies struct {
	Identities database.IdentityReader
	Registrar  *registrar.Registrar
	Recorder   *attendance.Recorder
	Sessions   *session.Manager
}

// Server represents the web server
type Server struct {
	config       *config.Config
	deps         Dependencies
	router       *chi.Mux
	httpServer   *http.Server
	validate     *validator.Validate
	captureLimit *middleware.RateLimiter
	log          logrus.FieldLogger
	stopSweeper  context.CancelFunc
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, port int, host string, deps Dependencies, log logrus.FieldLogger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:       cfg,
		deps:         deps,
		router:       r,
		validate:     validator.New(),
		captureLimit: middleware.NewRateLimiter(cfg.Session.CaptureRate, cfg.Session.CaptureBurst),
		log:          log,
	}
	deps.Sessions.OnClose(s.captureLimit.Forget)

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the idle-session sweeper and the HTTP server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweeper = cancel
	go s.deps.Sessions.Run(ctx)

	s.log.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and ends all capture sessions
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")

	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	defer s.deps.Sessions.CloseAll()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Package httpapi serves the dashboard: snapshot reads, manual metric edits,
// stateless scoring, chart series, the AI assistant, Prometheus text
// exposition and the live websocket stream.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"healthguard/internal/config"
	"healthguard/internal/genai"
	"healthguard/internal/monitor"
	"healthguard/internal/report"
	"healthguard/internal/series"
	"healthguard/internal/stream"
)

// SourceAPI tags patches applied through the HTTP API.
const SourceAPI = "api"

// Deps are the collaborators the handlers use. Assistant and Sessions may
// be nil-backed: the assistant then answers with genai.UnavailableText.
type Deps struct {
	Monitor   *monitor.Monitor
	Series    *series.Generator
	Assistant *genai.Assistant
	Sessions  *genai.Sessions
	Hub       *stream.Hub
	Window    *report.Window
	Locale    string
}

// Server wraps the gin router and its http.Server.
type Server struct {
	deps     Deps
	cfg      config.HTTPConfig
	router   *gin.Engine
	counters *counters
	logger   zerolog.Logger
	now      func() time.Time
}

// New builds the router and subscribes the update counters to the monitor.
func New(cfg config.HTTPConfig, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:     deps,
		cfg:      cfg,
		counters: newCounters(),
		logger:   logger.With().Str("component", "http").Logger(),
		now:      time.Now,
	}
	deps.Monitor.Subscribe(s.counters.observe)
	s.router = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	origins := s.cfg.AllowedOrigins
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", s.health)
	router.GET("/metrics", s.metrics)
	if s.deps.Hub != nil {
		router.GET("/ws/stream", gin.WrapH(s.deps.Hub))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/snapshot", s.snapshot)
		api.PATCH("/metrics", s.patchMetrics)
		api.POST("/reset", s.reset)
		api.POST("/score", s.score)
		api.GET("/series/:metric", s.seriesFor)
		api.POST("/recommendations", s.recommendations)
		api.POST("/summary", s.summary)
		api.POST("/coach", s.coach)
		api.POST("/speech", s.speech)
	}
	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		event := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

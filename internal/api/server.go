package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/glaucoma-screening-server/internal/domain"
)

// HealthChecker reports backing-store health for the health endpoint
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	config     *domain.ServerConfig
	logger     *logrus.Logger
	router     *gin.Engine
	server     *http.Server
	handlers   *Handlers
	health     HealthChecker
	rateLimits *rate.Limiter
}

// NewServer creates a new HTTP server instance
func NewServer(config *domain.Config, logger *logrus.Logger, handlers *Handlers, health HealthChecker) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		config:     &config.Server,
		logger:     logger,
		router:     router,
		handlers:   handlers,
		health:     health,
		rateLimits: rate.NewLimiter(rate.Limit(config.Server.RateLimitPerSec), config.Server.RateLimitBurst),
	}

	router.Use(s.rateLimitMiddleware())
	s.setupRoutes()

	return s
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/questionnaire", s.handlers.GetQuestionnaire)
		v1.POST("/screenings", s.handlers.CreateScreening)
		v1.GET("/screenings/:id", s.handlers.GetScreening)
		v1.GET("/patients/:ref/screenings", s.handlers.ListPatientScreenings)

		admin := v1.Group("/admin")
		{
			admin.POST("/questions", s.handlers.CreateQuestion)
			admin.PUT("/questions/:id", s.handlers.UpdateQuestion)
			admin.DELETE("/questions/:id", s.handlers.ArchiveQuestion)
			admin.PUT("/questions/:id/options/order", s.handlers.ReorderOptions)

			admin.GET("/advice", s.handlers.ListAdvice)
			admin.POST("/advice", s.handlers.CreateAdvice)
			admin.PUT("/advice/:id", s.handlers.UpdateAdvice)
			admin.DELETE("/advice/:id", s.handlers.DeleteAdvice)
		}
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.health.Health(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// rateLimitMiddleware applies a global token-bucket limit
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimits.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

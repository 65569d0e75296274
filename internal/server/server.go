package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/dosifier-cli/internal/service"
)

// Config holds listener and auth settings for the HTTP API.
type Config struct {
	Port        int
	BearerToken string
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Server bundles router and dependencies for the HTTP API.
type Server struct {
	cfg    Config
	svc    *service.Dosifier
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg Config, svc *service.Dosifier) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	s := &Server{cfg: cfg, svc: svc, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		_, loadedAt := s.svc.Table()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "table_loaded_at": loadedAt.UTC()})
	})

	v1 := s.engine.Group("/api/v1")
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}
	v1.POST("/estimate", s.handleEstimate)
	v1.GET("/limits", s.handleLimits)

	hist := v1.Group("/history")
	{
		hist.GET("", s.handleHistory)
		hist.GET("/stats", s.handleHistoryStats)
		hist.GET("/export", s.handleHistoryExport)
	}

	tbl := v1.Group("/table")
	{
		tbl.GET("", s.handleTable)
		tbl.POST("/reload", s.handleTableReload)
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"sellerbooks/internal/config"
	"sellerbooks/internal/logger"
	"sellerbooks/internal/pipeline"
	"sellerbooks/internal/platform"
	"sellerbooks/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server exposes extraction and the shared worksheet over HTTP. db may be
// nil, in which case the history endpoint reports the run log as disabled.
type Server struct {
	proc     *pipeline.ProcessingService
	registry *platform.Registry
	db       *storage.DB
	cfg      config.Config
	results  *cache.Cache
	engine   *gin.Engine
}

func New(proc *pipeline.ProcessingService, registry *platform.Registry, db *storage.DB, cfg config.Config) *Server {
	s := &Server{proc: proc, registry: registry, db: db, cfg: cfg}
	if cfg.CacheTTLSec > 0 {
		ttl := time.Duration(cfg.CacheTTLSec) * time.Second
		s.results = cache.New(ttl, 2*ttl)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	maxUpload := s.cfg.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 10
	}
	router.MaxMultipartMemory = int64(maxUpload) << 20

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "sellerbooks",
		})
	})

	api := router.Group("/api")
	{
		api.GET("/platforms", s.listPlatforms)
		api.POST("/extract", s.extract)
		api.GET("/history", s.history)

		api.GET("/worksheet", s.worksheetHTML)
		api.GET("/worksheet.xlsx", s.worksheetXLSX)
		api.DELETE("/worksheet", s.clearWorksheet)
	}
	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.ServerPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.WithField("addr", srv.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.L.WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			WithField("totalMs", time.Since(start).Milliseconds()).
			Debug("http request")
	}
}

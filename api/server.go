// Package api serves generated artifacts and a read-only statistics
// dashboard over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"publicresolvers/data"
	"publicresolvers/logger"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// statsFile is data/stats.json relative to the output directory.
var statsFile = filepath.Join("data", "stats.json")

// NewRouter returns a Gin engine exposing baseDir:
//
//	GET /           HTML dashboard built from data/stats.json
//	GET /health     liveness probe
//	GET /stats      data/stats.json, 503 until the first generation
//	GET /resolvers/ plain-text lists
//	GET /data/      JSON and CSV documents
func NewRouter(baseDir string, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = logger.Discard()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	h := &handlers{baseDir: baseDir, logger: log}
	router.GET("/", h.dashboard)
	router.GET("/health", h.health)
	router.GET("/stats", h.stats)
	router.Static("/resolvers", filepath.Join(baseDir, "resolvers"))
	router.Static("/data", filepath.Join(baseDir, "data"))
	return router
}

// Serve runs the HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr, baseDir string, log *slog.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(baseDir, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", "addr", addr, "dir", baseDir)
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
	log.Info("API server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type handlers struct {
	baseDir string
	logger  *slog.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) stats(c *gin.Context) {
	raw, err := h.loadStats()
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistics not generated yet"})
		return
	}
	if err != nil {
		h.logger.Error("read statistics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "statistics unreadable"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (h *handlers) loadStats() (json.RawMessage, error) {
	return data.LoadFromJSON[json.RawMessage](filepath.Join(h.baseDir, statsFile))
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

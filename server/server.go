// Package server exposes dataset processing, training sessions and the
// model store over HTTP, with live progress on a websocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/YuminosukeSato/linfit/config"
	"github.com/YuminosukeSato/linfit/pkg/errors"
	"github.com/YuminosukeSato/linfit/pkg/log"
	"github.com/YuminosukeSato/linfit/storage"
)

const shutdownTimeout = 10 * time.Second

// Server is the linfit HTTP API.
type Server struct {
	cfg      config.Config
	store    *storage.Store
	logger   log.Logger
	base     log.Logger
	registry *registry
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

// New builds the router. store may be nil, in which case the model
// endpoints answer 503.
func New(cfg config.Config, store *storage.Store, logger log.Logger) *Server {
	if logger == nil {
		logger = log.GetLogger()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		logger:   logger.With(log.ComponentKey, "server"),
		base:     logger,
		registry: newRegistry(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/process-data", s.processData)

	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.DELETE("/sessions/:id", s.deleteSession)
	api.GET("/sessions/:id/ws", s.streamSession)
	api.GET("/sessions/:id/result", s.sessionResult)
	api.GET("/sessions/:id/charts/:chart", s.sessionChart)
	api.POST("/sessions/:id/pause", s.control((*sessionEntry).pause))
	api.POST("/sessions/:id/resume", s.control((*sessionEntry).resume))
	api.POST("/sessions/:id/stop", s.control((*sessionEntry).stop))
	api.POST("/sessions/:id/save", s.saveSession)

	api.POST("/predict", s.predict)

	api.GET("/models", s.listModels)
	api.GET("/models/:id", s.getModel)
	api.DELETE("/models/:id", s.deleteModel)
	return r
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Addr() until ctx is cancelled, then stops running
// sessions and shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	s.registry.stopAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			if last := c.Errors.Last(); last != nil {
				fields = append([]any{last.Err}, fields...)
			}
			s.logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("request", fields...)
		default:
			s.logger.Debug("request", fields...)
		}
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/dataupgrader/internal/article"
	"github.com/loykin/dataupgrader/internal/common"
	"github.com/loykin/dataupgrader/internal/constants"
	"github.com/loykin/dataupgrader/internal/metrics"
	"github.com/loykin/dataupgrader/internal/upgrade"
)

// Store is what the article routes need from a connector.
type Store interface {
	article.Reader
	article.Writer
}

type Options struct {
	State    *upgrade.State
	Store    Store
	Toggle   *Toggle
	Metrics  *metrics.Collector
	Auth     AuthConfig
	Services article.Services
	Logger   *common.Logger
	Now      func() time.Time
}

// Server is the HTTP surface next to the runner.
type Server struct {
	engine  *gin.Engine
	opts    Options
	started time.Time
	logger  *common.Logger
}

func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Toggle == nil {
		opts.Toggle = NewToggle(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.GetLogger()
	}
	s := &Server{opts: opts, started: opts.Now(), logger: logger.WithComponent("http")}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET(constants.HealthCheckPath, s.healthCheck)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	if opts.Store != nil {
		engine.GET("/articles", s.listArticles)
		engine.POST("/articles", s.createArticle)
	}
	admin := engine.Group("/admin/upgrades", requireJWT(opts.Auth))
	admin.POST("/pause", s.setEnabled(false))
	admin.POST("/resume", s.setEnabled(true))

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l := s.logger.WithRequest(c.Request.Method, c.Request.URL.Path)
		status := c.Writer.Status()
		args := []any{"status", status, "latency", time.Since(start)}
		if status >= http.StatusInternalServerError {
			l.Error("request failed", args...)
			return
		}
		l.Debug("request handled", args...)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	snap := upgrade.Snapshot{}
	if s.opts.State != nil {
		snap = s.opts.State.Snapshot()
	}
	c.JSON(http.StatusOK, gin.H{
		"uptime":       s.opts.Now().Sub(s.started).Seconds(),
		"dataUpgrades": snap,
	})
}

func (s *Server) listArticles(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	articles, err := article.ListLive(c.Request.Context(), s.opts.Store, limit, s.opts.Services)
	if err != nil {
		s.logger.Error("GET /articles failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (s *Server) createArticle(c *gin.Context) {
	var in article.NewArticle
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := article.Create(c.Request.Context(), s.opts.Store, in, s.opts.Now())
	if err != nil {
		if errors.Is(err, article.ErrInvalidArticle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("POST /articles failed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) setEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.opts.Toggle.Set(enabled)
		s.logger.Info("data upgrades toggled", "enabled", enabled, "by", subject(c))
		c.JSON(http.StatusOK, gin.H{"enabled": enabled})
	}
}

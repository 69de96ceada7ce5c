// Package api serves the task store and the chat executor over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirbrooks/tasker-chat/internal/chat"
	"github.com/amirbrooks/tasker-chat/internal/store"
)

const (
	corsMethods = "GET, POST, PATCH, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

type Options struct {
	// StaticDir holds index.html for the browser UI. Empty disables it.
	StaticDir    string
	AllowOrigins []string
	Logger       *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	store    *store.Store
	executor *chat.Executor
	router   *gin.Engine
	logger   *slog.Logger
	origins  []string
}

func NewServer(s *store.Store, ex *chat.Executor, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	srv := &Server{
		store:    s,
		executor: ex,
		router:   router,
		logger:   logger,
		origins:  origins,
	}

	router.Use(srv.cors(), srv.requestLogger(), gin.CustomRecovery(srv.recover))
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, codeNotFound, "route not found")
	})
	router.NoMethod(func(c *gin.Context) {
		writeError(c, http.StatusMethodNotAllowed, codeInvalidArgument, "method not allowed")
	})

	router.GET("/healthz", srv.handleHealth)

	v1 := router.Group("/v1")
	{
		v1.POST("/tasks", srv.handleCreateTask)
		v1.GET("/tasks", srv.handleListTasks)
		v1.DELETE("/tasks", srv.handleDeleteAll)
		v1.GET("/tasks/:id", srv.handleGetTask)
		v1.PATCH("/tasks/:id", srv.handlePatchTask)
		v1.DELETE("/tasks/:id", srv.handleDeleteTask)
		v1.POST("/undo/restore", srv.handleRestore)
		v1.POST("/chat", srv.handleChat)
	}

	if opts.StaticDir != "" {
		index := filepath.Join(opts.StaticDir, "index.html")
		serveIndex := func(c *gin.Context) { c.File(index) }
		router.GET("/", serveIndex)
		router.GET("/ai-task-manager", serveIndex)
		router.GET("/ai-task-manager/", serveIndex)
	}

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// cors sets the CORS headers before the handler runs so error responses
// carry them too. Preflight requests stop here.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", s.allowOrigin(c.GetHeader("Origin")))
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) allowOrigin(origin string) string {
	for _, o := range s.origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return s.origins[0]
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) recover(c *gin.Context, rec any) {
	s.logger.Error("panic in handler", "panic", rec, "path", c.Request.URL.Path)
	writeError(c, http.StatusInternalServerError, codeServerError, "internal server error")
}

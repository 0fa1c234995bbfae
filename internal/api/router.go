// Package api exposes the dispatch and token-cleanup operations over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"sort"
	"time"

	"notice-push/internal/common/auth"
	"notice-push/internal/common/errors"
	"notice-push/internal/common/logger"
	dispatchnotices "notice-push/internal/workers/push/dispatch-notices"
	tokencleanup "notice-push/internal/workers/push/token-cleanup"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes = 1 << 20
	checkTimeout = 2 * time.Second
)

// ReadinessCheck reports whether one backing dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Authenticator *auth.Authenticator
	Dispatch      dispatchnotices.Executor
	Cleanup       tokencleanup.Executor
	Checks        map[string]ReadinessCheck
	Logger        logger.Logger
}

type Server struct {
	dispatch dispatchnotices.Executor
	cleanup  tokencleanup.Executor
	checks   map[string]ReadinessCheck
	logger   logger.Logger
}

// NewRouter builds the gin engine serving the public surface.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{
		dispatch: opts.Dispatch,
		cleanup:  opts.Cleanup,
		checks:   opts.Checks,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery(), Metrics(), RequestLogger(s.logger))

	router.NoMethod(func(c *gin.Context) {
		writeError(c, errors.NewMethodNotAllowedError(c.Request.Method))
	})

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", Authenticate(opts.Authenticator))
	authed.POST("/dispatch", s.handleDispatch)
	authed.POST("/token-cleanup", s.handleTokenCleanup)

	return router
}

func (s *Server) handleDispatch(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}
	input, err := dispatchnotices.ParseInput(body)
	if err != nil {
		writeError(c, err)
		return
	}

	output, err := s.dispatch.Execute(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}

func (s *Server) handleTokenCleanup(c *gin.Context) {
	if err := auth.RequireServiceRole(CallerFrom(c)); err != nil {
		writeError(c, err)
		return
	}

	body, err := readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}
	input, err := tokencleanup.ParseInput(body)
	if err != nil {
		writeError(c, err)
		return
	}

	output, err := s.cleanup.Execute(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, output)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) ready(c *gin.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failing []string
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
		err := s.checks[name](ctx)
		cancel()
		if err != nil {
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err.Error()})
			failing = append(failing, name)
		}
	}

	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "failing": failing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.NewValidationError("request body could not be read")
	}
	return body, nil
}

// writeError is the single place an error becomes a response body:
// {"error": {"code": "...", "message": "..."}}.
func writeError(c *gin.Context, err error) {
	apiErr := errors.ToAPIError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.HTTPStatus, gin.H{"error": apiErr})
}

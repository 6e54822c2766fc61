// Package api exposes the engines over HTTP/JSON. Node indices in requests
// are 1-based and are converted to 0-based before reaching the service.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gonbs/app"
	"gonbs/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// Config holds HTTP adapter settings
type Config struct {
	MaxBodyBytes int64
	Release      bool
}

// Server routes HTTP requests to the service
type Server struct {
	router  *gin.Engine
	service *app.Service
	logger  logging.Logger
	config  Config
}

// NewServer creates a router with middleware and all routes mounted
func NewServer(service *app.Service, logger logging.Logger, config Config) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:  gin.New(),
		service: service,
		logger:  logger,
		config:  config,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestID())
	s.router.Use(s.requestLogger())
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")

	v1.POST("/glm", s.handleGLM)

	v1.POST("/tfce/sparse", s.handleSparseTFCE)
	v1.POST("/tfce/reference-adjacency", s.handleReferenceAdjacency)
	v1.POST("/tfce/:method", s.handleEnhance)

	v1.POST("/clusters/sparse", s.handleSparseClusters)

	v1.POST("/pvalues/network", s.handleNetworkPValues)
	v1.POST("/pvalues/max-component", s.handleMaxComponent)

	v1.POST("/pipeline", s.handlePipeline)

	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
}

// requestID propagates X-Request-ID, minting one when the caller did not.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one structured line per request, at warn for 4xx and
// error for 5xx.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
			"bytes", c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("HTTP request", fields...)
		default:
			s.logger.Info("HTTP request", fields...)
		}
	}
}

// Package httpapi exposes the scan service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phishguard/phishguard/internal/core"
	"go.uber.org/zap"
)

// PrincipalHeader carries the id of the authenticated principal. Login happens
// upstream; this service only resolves the id.
const PrincipalHeader = "X-Principal-ID"

const principalKey = "principal"

// ScanAPI is the part of core.ScanService the handlers call
type ScanAPI interface {
	Scan(ctx context.Context, principal *core.Principal, req core.ScanRequest) (*core.ScanOutcome, error)
	Stats(ctx context.Context, principalID string) (*core.Stats, error)
	Latest(ctx context.Context, principalID string, limit int) ([]core.ScanResult, error)
	Predict(ctx context.Context, text string) (float64, core.Label, error)
}

// Connector runs the OAuth authorization-code flow
type Connector interface {
	AuthURL(principalID string) (string, string, error)
	Complete(ctx context.Context, code, state string) (string, error)
}

// Server is the HTTP front of the scan service
type Server struct {
	service     ScanAPI
	principals  core.PrincipalStore
	connector   Connector
	frontendURL string
	logger      *zap.Logger
	router      *gin.Engine
	httpServer  *http.Server
}

// NewServer creates a new HTTP server and registers its routes
func NewServer(
	service ScanAPI,
	principals core.PrincipalStore,
	connector Connector,
	listenAddr string,
	frontendURL string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		service:     service,
		principals:  principals,
		connector:   connector,
		frontendURL: frontendURL,
		logger:      logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The OAuth callback is reached by a browser redirect without our header;
	// the state value identifies the principal instead.
	r.GET("/auth/google/callback", s.handleGoogleCallback)

	authed := r.Group("/", s.requirePrincipal())
	{
		authed.GET("/auth/google", s.handleGoogleConnect)
		authed.POST("/emails/scan", s.handleScan)
		authed.GET("/emails/stats", s.handleStats)
		authed.GET("/emails/latest", s.handleLatest)
		authed.POST("/predict", s.handlePredict)
	}

	s.router = r
	s.httpServer = &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts serving in the background
func (s *Server) Start() error {
	s.logger.Info("HTTP API starting", zap.String("address", s.httpServer.Addr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx is done
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(PrincipalHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + PrincipalHeader})
			return
		}

		principal, err := s.principals.GetPrincipal(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrPrincipalNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown principal"})
				return
			}
			s.logger.Error("Failed to resolve principal", zap.String("principal_id", id), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) *core.Principal {
	return c.MustGet(principalKey).(*core.Principal)
}

// statusFor maps the scan failure taxonomy to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotConnected):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrRefreshFailed), errors.Is(err, core.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrFetchUnavailable), errors.Is(err, core.ErrClassifierUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		s.logger.Info("Request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": core.UserMessage(err)})
}

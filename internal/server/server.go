// Package server exposes the handlers over plain HTTP for local development
// and container deployments.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"github.com/devonik/email-api/internal/handler"
)

const (
	// shutdownTimeout is the maximum time to wait for in-flight requests
	// during graceful shutdown.
	shutdownTimeout = 30 * time.Second

	// maxBodySize matches the SES raw message limit.
	maxBodySize = 10 << 20

	readHeaderTimeout = 10 * time.Second
)

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	// APIKey is required in the x-api-key header when set.
	APIKey string

	// Logger receives one line per request. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server serves the email handlers over HTTP.
type Server struct {
	config  ServerConfig
	handler *handler.Handler
	auth    *Authenticator
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new Server with the given configuration.
func New(cfg ServerConfig, h *handler.Handler) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		handler: h,
		auth:    NewAuthenticator(cfg.APIKey),
		logger:  logger,
	}
}

// Routes returns the gin engine with all routes registered.
func (s *Server) Routes() http.Handler {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(
		gin.Recovery(),
		RequestLogger(s.logger),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	emailRoute := router.Group("/email")
	emailRoute.Use(s.auth.Middleware())
	{
		emailRoute.POST("", s.proxy(s.handler.PostRequest))
		emailRoute.POST("/schedule", s.proxy(s.handler.Schedule))
		emailRoute.DELETE("/schedule/:executionArn", s.proxy(s.handler.Cancel))
	}

	return router
}

// ListenAndServe starts the HTTP server and blocks until the context is cancelled.
// On context cancellation, it stops accepting new connections and waits up to
// 30 seconds for in-flight requests to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.logger.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"auth_enabled", s.auth.Enabled(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("shutdown timeout reached, forcing close", "error", err)
		return srv.Close()
	}
	s.logger.Info("all requests completed")
	return nil
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

type proxyFunc func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// proxy adapts a lambda proxy handler to gin.
func (s *Server) proxy(fn proxyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := proxyRequest(c)
		if err != nil {
			_ = c.Error(err)
			c.String(http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}

		resp, err := fn(c.Request.Context(), req)
		if err != nil {
			_ = c.Error(err)
			c.String(http.StatusInternalServerError, "Internal server error")
			return
		}

		for k, v := range resp.Headers {
			c.Header(k, v)
		}
		c.Status(resp.StatusCode)
		_, _ = c.Writer.WriteString(resp.Body)
	}
}

func proxyRequest(c *gin.Context) (events.APIGatewayProxyRequest, error) {
	r := c.Request
	body, err := readBody(c.Writer, r)
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}

	req := events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               map[string]string{},
		QueryStringParameters: map[string]string{},
		PathParameters:        map[string]string{},
		Body:                  string(body),
	}
	for k := range r.Header {
		req.Headers[k] = r.Header.Get(k)
	}
	for k, v := range r.URL.Query() {
		req.QueryStringParameters[k] = v[0]
	}
	if arn := c.Param("executionArn"); arn != "" {
		req.PathParameters["executionArn"] = arn
	}
	return req, nil
}

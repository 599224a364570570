// Package server assembles the gin engine and owns the HTTP listener lifecycle.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/covercompare/membergate/internal/api"
	"github.com/covercompare/membergate/internal/auth"
	"github.com/covercompare/membergate/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// HealthFunc reports whether the persistence backend is reachable.
type HealthFunc func(ctx context.Context) error

// Server serves the membership API.
type Server struct {
	cfg    config.HTTPConfig
	engine *gin.Engine
	http   *http.Server
	cert   *tls.Certificate
}

// New builds the router: request logging, CORS, /healthz, /metrics and the /api routes.
func New(cfg config.HTTPConfig, h *api.Handler, authn auth.Authenticator, health HealthFunc) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors(cfg.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				log.Warn().Err(err).Msg("Health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.CheckOrigin == nil && len(cfg.AllowedOrigins) > 0 {
		h.CheckOrigin = func(req *http.Request) bool {
			return originAllowed(cfg.AllowedOrigins, req.Header.Get("Origin"))
		}
	}
	apiGroup := r.Group("/api", auth.Middleware(authn))
	h.Register(apiGroup)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	return &Server{
		cfg:    cfg,
		engine: r,
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// SetCertificate enables TLS on the listener.
func (s *Server) SetCertificate(cert tls.Certificate) {
	s.cert = &cert
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on l until ctx is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if s.cert != nil {
		l = tls.NewListener(l, &tls.Config{
			Certificates: []tls.Certificate{*s.cert},
			MinVersion:   tls.VersionTLS12,
		})
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", l.Addr().String()).Bool("tls", s.cert != nil).Msg("HTTP server listening")
		errCh <- s.http.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		evt := log.Info()
		if status >= http.StatusInternalServerError {
			evt = log.Error()
		} else if status >= http.StatusBadRequest {
			evt = log.Warn()
		}
		evt.Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// cors allows every origin when allowed is empty.
func cors(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowed) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case originAllowed(allowed, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, "+requestIDHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	return origin != "" && slices.Contains(allowed, origin)
}

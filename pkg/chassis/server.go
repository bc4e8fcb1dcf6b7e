// Package chassis runs the HTTP front end.
//
// One TCP listener serves the API, plain HTTP or TLS (HTTP/1.1 + HTTP/2).
// TLS is enabled by supplying cert/key files, or by asking for a
// self-signed development certificate.
//
// Every response carries the standard security headers.
package chassis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server is the HTTP chassis.
type Server struct {
	addr       string
	logger     *slog.Logger
	tlsCfg     *tls.Config
	handler    http.Handler
	httpServer *http.Server
	ln         net.Listener
	mu         sync.Mutex
}

// Config holds configuration for the chassis server.
type Config struct {
	Addr       string       // Listen address (e.g. ":8420")
	TLS        *tls.Config  // explicit TLS config, wins over the fields below
	CertFile   string       // production cert path
	KeyFile    string       // production key path
	SelfSigned bool         // generate a development cert when no files are given
	Handler    http.Handler // API router
	Logger     *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handler == nil {
		return nil, errors.New("chassis: nil handler")
	}

	tlsCfg := cfg.TLS
	if tlsCfg == nil {
		switch {
		case cfg.CertFile != "" && cfg.KeyFile != "":
			var err error
			tlsCfg, err = ProductionTLSConfig(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("load TLS cert: %w", err)
			}
			cfg.Logger.Info("TLS: production certs loaded")
		case cfg.SelfSigned:
			var err error
			tlsCfg, err = DevelopmentTLSConfig()
			if err != nil {
				return nil, fmt.Errorf("generate dev TLS: %w", err)
			}
			cfg.Logger.Info("TLS: self-signed dev cert generated")
		}
	}

	return &Server{
		addr:    cfg.Addr,
		logger:  cfg.Logger,
		tlsCfg:  tlsCfg,
		handler: cfg.Handler,
	}, nil
}

// securityHeaders wraps an http.Handler and adds standard security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// Addr returns the bound address once Start has opened the listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Start opens the listener and serves until ctx is done or serving fails.
// It returns nil on cancellation; call Stop to drain connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           securityHeaders(s.handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("TCP listen: %w", err)
	}
	proto := "HTTP/1.1"
	if s.tlsCfg != nil {
		tlsCfg := s.tlsCfg.Clone()
		tlsCfg.NextProtos = []string{"h2", "http/1.1"}
		s.httpServer.TLSConfig = tlsCfg
		ln = tls.NewListener(ln, tlsCfg)
		proto = "HTTP/1.1+HTTP/2 (TLS)"
	}
	s.ln = ln
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("chassis started", "addr", ln.Addr().String(), "proto", proto)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("serve: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down the listener and in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("chassis stopping")
	err := s.httpServer.Shutdown(ctx)
	s.logger.Info("chassis stopped")
	return err
}

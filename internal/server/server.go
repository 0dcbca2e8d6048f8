package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"ups_trap_gateway/internal/config"
)

// Server wraps an *http.Server to provide start/shutdown lifecycle.
type Server struct {
	httpServer *http.Server
	timeouts   timeouts
}

type timeouts struct {
	readHeader time.Duration
	write      time.Duration
	idle       time.Duration
}

const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// New returns a server using the timeouts from cfg; zero values fall back to
// the package defaults.
func New(cfg config.HTTPConfig) *Server {
	return &Server{timeouts: timeouts{
		readHeader: orDefault(cfg.ReadHeaderTimeout, readHeaderTimeout),
		write:      orDefault(cfg.WriteTimeout, writeTimeout),
		idle:       orDefault(cfg.IdleTimeout, idleTimeout),
	}}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func (s *Server) newHTTPServer(addr string, handler http.Handler) *http.Server {
	t := s.timeouts
	if t == (timeouts{}) {
		t = timeouts{readHeaderTimeout, writeTimeout, idleTimeout}
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: t.readHeader,
		WriteTimeout:      t.write,
		IdleTimeout:       t.idle,
	}
}

// normalizeAddr accepts "8080" or ":8080".
func normalizeAddr(port string) string {
	if port == "" {
		return ""
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Run starts the HTTP server on the given port using the provided handler.
func (s *Server) Run(port string, handler http.Handler) error {
	s.httpServer = s.newHTTPServer(normalizeAddr(port), handler)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, allowing in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

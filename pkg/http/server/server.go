// Package httpserver wraps the stdlib server with channel-based error
// delivery and a bounded shutdown. The download core never opens ports; this
// exists for auxiliary endpoints such as the metrics listener.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

const (
	defaultAddr            = ":9090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultShutdownTimeout = 3 * time.Second
)

type Server struct {
	server          *http.Server
	errCh           chan error
	shutdownTimeout time.Duration
}

type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func New(handler http.Handler, opt Options) *Server {
	if opt.Addr == "" {
		opt.Addr = defaultAddr
	}

	if opt.ReadTimeout <= 0 {
		opt.ReadTimeout = defaultReadTimeout
	}

	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = defaultWriteTimeout
	}

	if opt.ShutdownTimeout <= 0 {
		opt.ShutdownTimeout = defaultShutdownTimeout
	}

	httpServer := &http.Server{
		Handler:      handler,
		Addr:         opt.Addr,
		ReadTimeout:  opt.ReadTimeout,
		WriteTimeout: opt.WriteTimeout,
	}

	srv := &Server{
		server:          httpServer,
		errCh:           make(chan error, 1),
		shutdownTimeout: opt.ShutdownTimeout,
	}

	go srv.start()

	return srv
}

func (s *Server) start() {
	s.errCh <- s.server.ListenAndServe()
	close(s.errCh)
}

// Notify reports the listener outcome; it receives http.ErrServerClosed
// after a clean Shutdown.
func (s *Server) Notify() <-chan error {
	return s.errCh
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT     = 60 * time.Second
	DEFAULT_WRITE_TIMEOUT    = DEFAULT_READ_TIMEOUT
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second
)

// Server wraps http.Server and drains in-flight requests (uploads included) on SIGTERM or SIGINT.
type Server struct {
	*http.Server

	shutdownTimeout time.Duration
	signalChan      chan os.Signal
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
		shutdownTimeout: DEFAULT_SHUTDOWN_TIMEOUT,
		signalChan:      make(chan os.Signal, 1),
	}
}

// Run listens on Addr and blocks until ctx is done or a termination signal arrives, then
// shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("net.Listen error: %w", err)
	}

	signal.Notify(srv.signalChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(srv.signalChan)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-srv.signalChan:
		Sugar.Infof("received %s, graceful shutting down HTTP server", sig)
	case <-ctx.Done():
		Sugar.Info("context done, graceful shutting down HTTP server")
	}
	return srv.shutdown()
}

func (srv *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
		return err
	}
	Sugar.Info("HTTP server shutdown success")
	return nil
}

// GraceServer serves handler on addr until a termination signal or ctx cancellation.
func GraceServer(ctx context.Context, addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) error {
	if readTimeout <= 0 {
		readTimeout = DEFAULT_READ_TIMEOUT
	}
	if writeTimeout <= 0 {
		writeTimeout = DEFAULT_WRITE_TIMEOUT
	}
	return NewServer(addr, handler, readTimeout, writeTimeout).Run(ctx)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
)

// Server wraps the HTTP server lifecycle
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server for handler on :port.
// WriteTimeout stays zero so websocket subscriptions are not cut off.
func NewServer(port string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		glog.Infof("[api]listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		glog.Infof("[api]shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	case err := <-errChan:
		return err
	}
}

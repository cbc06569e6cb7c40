// Package services adapts the service's components to suture.Service.
package services

import (
	"context"
	"fmt"
	"time"
)

// FiberServer matches the lifecycle methods of *fiber.App.
type FiberServer interface {
	Listen(addr string) error
	ShutdownWithContext(ctx context.Context) error
}

// FiberServerService runs a fiber app as a supervised service.
type FiberServerService struct {
	server          FiberServer
	addr            string
	shutdownTimeout time.Duration
	name            string
}

// NewFiberServerService wraps server listening on addr. A non-positive
// shutdownTimeout defaults to 10s.
func NewFiberServerService(server FiberServer, addr string, shutdownTimeout time.Duration) *FiberServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &FiberServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve listens until ctx is canceled, then drains in-flight requests.
func (s *FiberServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Listen(s.addr)
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return fmt.Errorf("http server on %s stopped unexpectedly", s.addr)

	case <-ctx.Done():
		// ctx is already canceled; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *FiberServerService) String() string {
	return s.name
}

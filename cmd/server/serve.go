package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// httpServer is the part of *web.Server that serve drives.
type httpServer interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is done, then drains it and shuts down each
// closer in order. It returns only after every shutdown has finished, so
// resources the handlers use can be released by the caller afterwards.
func serve(ctx context.Context, srv httpServer, addr string, timeout time.Duration, closers ...shutdowner) error {
	startErr := make(chan error, 1)
	go func() {
		startErr <- srv.Start(addr)
	}()

	select {
	case err := <-startErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := <-startErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	for _, c := range closers {
		if err := c.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder collects shutdown events in the order they happen.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// fakeServer blocks in Start until Shutdown, and Shutdown takes a while to
// drain, like http.Server with a request in flight.
type fakeServer struct {
	rec      *recorder
	drain    time.Duration
	startErr error
	stopped  chan struct{}
	started  chan struct{}
}

func newFakeServer(rec *recorder, drain time.Duration) *fakeServer {
	return &fakeServer{rec: rec, drain: drain, stopped: make(chan struct{}), started: make(chan struct{})}
}

func (s *fakeServer) Start(addr string) error {
	close(s.started)
	if s.startErr != nil {
		return s.startErr
	}
	<-s.stopped
	s.rec.add("start returned")
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	close(s.stopped)
	time.Sleep(s.drain)
	s.rec.add("server drained")
	return nil
}

type fakeTracer struct {
	rec *recorder
	err error
}

func (f fakeTracer) Shutdown(ctx context.Context) error {
	f.rec.add("tracer shut down")
	return f.err
}

func TestServe_WaitsForShutdown(t *testing.T) {
	rec := &recorder{}
	srv := newFakeServer(rec, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, srv, "127.0.0.1:0", time.Second, fakeTracer{rec: rec})
	}()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}

	events := rec.list()
	require.Len(t, events, 3, "all shutdown steps finish before serve returns")
	require.Equal(t, "tracer shut down", events[2])
	require.Contains(t, events[:2], "server drained")
	require.Contains(t, events[:2], "start returned")
}

func TestServe_ReportsShutdownErrors(t *testing.T) {
	rec := &recorder{}
	srv := newFakeServer(rec, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := serve(ctx, srv, "127.0.0.1:0", time.Second, fakeTracer{rec: rec, err: errors.New("exporter stuck")})
	require.ErrorContains(t, err, "exporter stuck")
}

func TestServe_StartFailure(t *testing.T) {
	rec := &recorder{}
	srv := newFakeServer(rec, 0)
	srv.startErr = errors.New("address already in use")

	err := serve(context.Background(), srv, "127.0.0.1:0", time.Second, fakeTracer{rec: rec})
	require.ErrorContains(t, err, "address already in use")
	require.Empty(t, rec.list(), "nothing to shut down when the server never ran")
}

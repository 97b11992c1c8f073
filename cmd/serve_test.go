package cmd

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/holelung/Face-recognition-attendance-check/internal/logger"
)

type fakeServer struct {
	startErr error
	stopped  chan struct{}
	drained  atomic.Bool
}

func newFakeServer(startErr error) *fakeServer {
	return &fakeServer{startErr: startErr, stopped: make(chan struct{})}
}

func (f *fakeServer) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stopped
	return nil
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	close(f.stopped)
	// Start has returned by now; draining takes a little longer.
	time.Sleep(50 * time.Millisecond)
	f.drained.Store(true)
	return nil
}

func TestServeUntilSignal_WaitsForShutdown(t *testing.T) {
	server := newFakeServer(nil)
	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGTERM

	done := make(chan error, 1)
	go func() {
		done <- serveUntilSignal(context.Background(), server, sigChan, logger.Discard())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !server.drained.Load() {
			t.Error("expected serve to return only after shutdown finished")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after signal")
	}
}

func TestServeUntilSignal_StartError(t *testing.T) {
	server := newFakeServer(errors.New("address in use"))
	sigChan := make(chan os.Signal, 1)

	done := make(chan error, 1)
	go func() {
		done <- serveUntilSignal(context.Background(), server, sigChan, logger.Discard())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected start error")
		}
		if server.drained.Load() {
			t.Error("expected no shutdown without a signal")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after start error")
	}
}

package collector

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func sendInterrupt(t *testing.T) {
	t.Helper()
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("find process: %v", err)
	}
	if err := p.Signal(os.Interrupt); err != nil {
		t.Fatalf("signal: %v", err)
	}
}

// TestSetupSignalHandler tests that the first signal cancels the context
func TestSetupSignalHandler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	parent, stop := context.WithCancel(context.Background())
	defer stop()

	var shutdownCalled atomic.Bool
	ctx, cancel := SetupSignalHandler(parent, func(os.Signal) {
		shutdownCalled.Store(true)
	})
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be cancelled initially")
	default:
	}

	sendInterrupt(t)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should be cancelled after signal")
	}

	if !shutdownCalled.Load() {
		t.Error("Shutdown function should have been called")
	}
}

// TestSetupSignalHandler_SecondSignalForcesExit tests the escape hatch
func TestSetupSignalHandler_SecondSignalForcesExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	exited := make(chan int, 1)
	forceExit = func(code int) { exited <- code }
	defer func() { forceExit = os.Exit }()

	parent, stop := context.WithCancel(context.Background())
	defer stop()

	ctx, cancel := SetupSignalHandler(parent, nil)
	defer cancel()

	sendInterrupt(t)
	<-ctx.Done()
	sendInterrupt(t)

	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("Expected exit code 1, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("Second signal should force exit")
	}
}

// TestSetupSignalHandler_ParentCancel tests that cancelling the parent releases the handler
func TestSetupSignalHandler_ParentCancel(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	ctx, cancel := SetupSignalHandler(parent, func(os.Signal) {
		t.Error("Shutdown function should not run without a signal")
	})
	defer cancel()

	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should follow its parent")
	}
}

//go:build unix

package util

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContextWithSignal(t *testing.T) {
	exited := make(chan int, 1)
	exit = func(code int) {
		exited <- code
	}
	defer func() {
		exit = os.Exit
	}()

	ctx, cancel := ContextWithSignal(context.Background(), syscall.SIGUSR1)
	defer cancel()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context is not cancelled by the first signal")
	}

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	select {
	case code := <-exited:
		require.Equal(t, exitCode, code)
	case <-time.After(time.Second):
		t.Fatal("process does not exit on the second signal")
	}
}

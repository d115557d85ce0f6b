//go:build integration

// Package containers starts throwaway backing services for integration
// tests. Tests are skipped when no Docker daemon is reachable.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// isDockerAvailable reports whether the testcontainers Docker provider can
// reach a daemon.
func isDockerAvailable(ctx context.Context) bool {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.DaemonHost(ctx)
	return err == nil
}

// skipWithoutDocker skips t when Docker is unavailable.
func skipWithoutDocker(ctx context.Context, t *testing.T) {
	t.Helper()
	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available - skipping integration test")
	}
}

package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"gosobol/internal"
	"gosobol/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, port string) *config.Config {
	t.Helper()
	cfg := &config.Config{LogLevel: "ERROR"}
	cfg.Server.Port = port
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "runs.db")
	return cfg
}

func TestRun_StopsWithContext(t *testing.T) {
	cfg := testConfig(t, "0")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, internal.NewNopLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	_, err := os.Stat(cfg.Database.SQLitePath)
	assert.NoError(t, err)
}

func TestRun_ReturnsServerError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t, strconv.Itoa(ln.Addr().(*net.TCPAddr).Port))
	err = run(context.Background(), cfg, internal.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestRun_ReturnsInitError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	cfg := testConfig(t, "0")
	cfg.Database.SQLitePath = filepath.Join(blocker, "runs.db")
	err := run(context.Background(), cfg, internal.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize container")
}

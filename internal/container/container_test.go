package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gosobol/internal"
	"gosobol/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_InMemory(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	c, err := New(&config.Config{LogLevel: "ERROR"}, internal.NewNopLogger())
	require.NoError(t, err)

	_, err = c.APIServer()
	assert.Error(t, err)

	require.NoError(t, c.InitInMemory())
	require.NotNil(t, c.RunRepo)
	require.NotNil(t, c.Analysis)

	srv, err := c.APIServer()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestContainer_NilDatabase(t *testing.T) {
	c, err := New(&config.Config{}, nil)
	require.NoError(t, err)
	assert.Error(t, c.InitWithDatabase(context.Background(), nil))
}

func TestContainer_SQLite(t *testing.T) {
	c, err := New(&config.Config{}, internal.NewNopLogger())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "runs", "gosobol.db")
	require.NoError(t, c.InitWithSQLite(path))
	require.NotNil(t, c.SQLite)
	assert.Same(t, c.SQLite, c.RunRepo)

	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.NoError(t, c.Shutdown(context.Background()))
}

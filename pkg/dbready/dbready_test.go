package dbready

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testComposeFile = `
services:
  postgres:
    image: postgres:15-alpine
    ports:
      - "15433:5432"
    environment:
      POSTGRES_USER: metrics
      POSTGRES_PASSWORD: secret
      POSTGRES_DB: token_metrics
`

func writeCompose(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker-compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewManager_DefaultsApplied(t *testing.T) {
	m, err := NewManager(Options{ComposeFile: writeCompose(t, testComposeFile)}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "postgres", m.opts.Service)
	assert.Equal(t, 2*time.Second, m.opts.PollInterval)
	assert.Equal(t, uint64(30), m.opts.MaxAttempts)
}

func TestNewManager_MissingComposeFile(t *testing.T) {
	_, err := NewManager(Options{ComposeFile: "/nonexistent/docker-compose.yaml"}, zap.NewNop())
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	m, err := NewManager(Options{ComposeFile: writeCompose(t, testComposeFile)}, zap.NewNop())
	require.NoError(t, err)

	dsn, err := m.DatabaseDSN()
	require.NoError(t, err)
	assert.Equal(t,
		"host=localhost port=15433 user=metrics password=secret dbname=token_metrics sslmode=disable",
		dsn)
}

func TestDatabaseDSN_UnknownService(t *testing.T) {
	m, err := NewManager(Options{
		ComposeFile: writeCompose(t, testComposeFile),
		Service:     "redis",
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = m.DatabaseDSN()
	assert.Error(t, err)
}

// A database that never becomes ready must exhaust the retry budget and
// surface an error from the wait itself.
func TestWaitReady_BudgetExhaustedIsAnError(t *testing.T) {
	m, err := NewManager(Options{
		ComposeFile:  writeCompose(t, testComposeFile),
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		ProbeTimeout: 100 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	err = m.WaitReady(context.Background(),
		"host=localhost port=1 user=x password=x dbname=x sslmode=disable connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready after")
}

func TestWaitReady_ContextCancellation(t *testing.T) {
	m, err := NewManager(Options{
		ComposeFile:  writeCompose(t, testComposeFile),
		PollInterval: 50 * time.Millisecond,
		MaxAttempts:  1000,
	}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err = m.WaitReady(ctx,
		"host=localhost port=1 user=x password=x dbname=x sslmode=disable connect_timeout=1")
	assert.Error(t, err, "cancellation must abort the wait, not hang it")
}

func TestCheckConnectivity_Unreachable(t *testing.T) {
	m, err := NewManager(Options{ComposeFile: writeCompose(t, testComposeFile)}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = m.CheckConnectivity(ctx,
		"host=localhost port=1 user=x password=x dbname=x sslmode=disable connect_timeout=1")
	assert.Error(t, err)
}

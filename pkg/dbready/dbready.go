// Package dbready brings up the docker-compose Postgres instance and waits
// for it to accept connections.
package dbready

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/creasty/defaults"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Options configures the compose bring-up and readiness loop.
type Options struct {
	// ComposeFile is the docker-compose file describing the database.
	ComposeFile string `default:"docker-compose.yaml"`
	// Service is the compose service name of the Postgres container.
	Service string `default:"postgres"`
	// PollInterval is the delay between readiness probes.
	PollInterval time.Duration `default:"2s"`
	// MaxAttempts bounds the readiness loop. When the budget is exhausted
	// WaitReady returns an error instead of leaving the failure for a later
	// step to discover.
	MaxAttempts uint64 `default:"30"`
	// ProbeTimeout bounds a single connection attempt.
	ProbeTimeout time.Duration `default:"5s"`
}

// Manager drives the local database lifecycle: compose up, readiness wait,
// connectivity check, compose down.
type Manager struct {
	opts   Options
	logger *zap.Logger
}

// NewManager creates a Manager. Zero option fields fall back to defaults.
func NewManager(opts Options, logger *zap.Logger) (*Manager, error) {
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("apply default options: %w", err)
	}
	if _, err := os.Stat(opts.ComposeFile); err != nil {
		return nil, fmt.Errorf("compose file %s: %w", opts.ComposeFile, err)
	}
	return &Manager{opts: opts, logger: logger}, nil
}

// Up starts the database service detached.
func (m *Manager) Up(ctx context.Context) error {
	m.logger.Info("Starting database service",
		zap.String("compose_file", m.opts.ComposeFile),
		zap.String("service", m.opts.Service))
	return m.compose(ctx, "up", "-d", m.opts.Service)
}

// Down stops the database service. Volumes are kept.
func (m *Manager) Down(ctx context.Context) error {
	m.logger.Info("Stopping database service", zap.String("service", m.opts.Service))
	return m.compose(ctx, "down")
}

func (m *Manager) compose(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose", "-f", m.opts.ComposeFile}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker compose %v: %w", args, err)
	}
	return nil
}

// WaitReady polls the database until it accepts connections or the retry
// budget runs out. Exhausting the budget is an error: a database that never
// came up must fail here, not at the first query of some later step.
func (m *Manager) WaitReady(ctx context.Context, dsn string) error {
	attempt := 0
	probe := func() error {
		attempt++
		probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
		defer cancel()

		if err := ping(probeCtx, dsn); err != nil {
			m.logger.Debug("Database not ready yet",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.PollInterval), m.opts.MaxAttempts),
		ctx,
	)
	if err := backoff.Retry(probe, policy); err != nil {
		return fmt.Errorf("database not ready after %d attempts: %w", attempt, err)
	}

	m.logger.Info("Database ready", zap.Int("attempts", attempt))
	return nil
}

// CheckConnectivity verifies the database answers a trivial query. This is
// the post-readiness smoke test run before handing the instance to callers.
func (m *Manager) CheckConnectivity(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("connectivity query: %w", err)
	}
	if one != 1 {
		return fmt.Errorf("connectivity query returned %d", one)
	}

	m.logger.Info("Database connectivity verified")
	return nil
}

func ping(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

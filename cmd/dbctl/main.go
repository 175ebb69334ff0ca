// dbctl manages the local token metrics database: compose lifecycle,
// readiness checks, credential sync, and maintenance.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chainsight/token-metrics/pkg/config"
	"github.com/chainsight/token-metrics/pkg/dbready"
	"github.com/chainsight/token-metrics/pkg/envsync"
	"github.com/chainsight/token-metrics/pkg/pgutil"
	"github.com/chainsight/token-metrics/pkg/tokendb"
)

var (
	composeFile  string
	composeSvc   string
	pollInterval time.Duration
	maxAttempts  uint64
	dsnOverride  string
)

func main() {
	root := &cobra.Command{
		Use:          "dbctl",
		Short:        "Manage the local token metrics Postgres instance",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&composeFile, "compose-file", "f", "docker-compose.yaml", "docker-compose file")
	root.PersistentFlags().StringVar(&composeSvc, "service", "postgres", "compose service name of the database")

	root.AddCommand(
		upCmd(),
		downCmd(),
		waitCmd(),
		checkCmd(),
		envSyncCmd(),
		vacuumCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newManager() (*dbready.Manager, *zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("setup logger: %w", err)
	}
	m, err := dbready.NewManager(dbready.Options{
		ComposeFile:  composeFile,
		Service:      composeSvc,
		PollInterval: pollInterval,
		MaxAttempts:  maxAttempts,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return m, logger, nil
}

func resolveDSN(m *dbready.Manager) (string, error) {
	if dsnOverride != "" {
		return dsnOverride, nil
	}
	return m.DatabaseDSN()
}

func upCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start the database, wait for readiness, and verify connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, logger, err := newManager()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := m.Up(cmd.Context()); err != nil {
				return err
			}
			dsn, err := resolveDSN(m)
			if err != nil {
				return err
			}
			if err := m.WaitReady(cmd.Context(), dsn); err != nil {
				return err
			}
			return m.CheckConnectivity(cmd.Context(), dsn)
		},
	}
	addWaitFlags(cmd)
	return cmd
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, logger, err := newManager()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return m.Down(cmd.Context())
		},
	}
}

func waitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for the database to accept connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, logger, err := newManager()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dsn, err := resolveDSN(m)
			if err != nil {
				return err
			}
			return m.WaitReady(cmd.Context(), dsn)
		},
	}
	addWaitFlags(cmd)
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the database answers a trivial query",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, logger, err := newManager()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dsn, err := resolveDSN(m)
			if err != nil {
				return err
			}
			return m.CheckConnectivity(cmd.Context(), dsn)
		},
	}
	cmd.Flags().StringVar(&dsnOverride, "dsn", "", "connection string (overrides compose introspection)")
	return cmd
}

func envSyncCmd() *cobra.Command {
	var (
		source string
		target string
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "env-sync",
		Short: "Copy database credentials from one dotenv file to another",
		RunE: func(cmd *cobra.Command, args []string) error {
			return envsync.Sync(source, target, prefix)
		},
	}
	cmd.Flags().StringVar(&source, "source", ".env.postgres", "source dotenv file")
	cmd.Flags().StringVar(&target, "target", ".env", "target dotenv file")
	cmd.Flags().StringVar(&prefix, "prefix", envsync.DefaultPrefix, "variable name prefix to copy")
	return cmd
}

func vacuumCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Run VACUUM ANALYZE on the token metrics table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			db, err := pgutil.ConnectDB(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return tokendb.NewStore(db).VacuumAnalyze(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to configuration file")
	return cmd
}

func addWaitFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "delay between readiness probes")
	cmd.Flags().Uint64Var(&maxAttempts, "max-attempts", 30, "readiness probe budget")
	cmd.Flags().StringVar(&dsnOverride, "dsn", "", "connection string (overrides compose introspection)")
}

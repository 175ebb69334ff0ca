package tokendb_test

import (
	"context"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsight/token-metrics/pkg/migrations/tokendb"
	"github.com/chainsight/token-metrics/pkg/pgutil"
)

func TestTokenDBMigrations_Apply(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tokendb.Migrations)

	err := migrator.Init(ctx)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	pgutil.AssertTableExists(t, db, "token_metrics")
	pgutil.AssertViewExists(t, db, "latest_token_metrics")
	pgutil.AssertMaterializedViewExists(t, db, "top_tokens_by_market_cap")

	pgutil.AssertIndexExists(t, db, "idx_token_metrics_contract_address")
	pgutil.AssertIndexExists(t, db, "idx_token_metrics_chain")
	pgutil.AssertIndexExists(t, db, "idx_token_metrics_updated_at")
	pgutil.AssertIndexExists(t, db, "idx_top_tokens_contract_address")
}

func TestTokenDBMigrations_Rollback(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tokendb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	// Roll everything back one group at a time
	for {
		group, err := migrator.Rollback(ctx)
		if err != nil {
			t.Fatalf("Rollback() failed: %v", err)
		}
		if group.IsZero() {
			break
		}
	}

	pgutil.AssertTableNotExists(t, db, "token_metrics")
}

func TestTokenDBMigrations_Idempotency(t *testing.T) {
	db, cleanup := pgutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, tokendb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("First Migrate() failed: %v", err)
	}

	// Second run must be a no-op, not an error
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second Migrate() failed: %v", err)
	}
	if !group.IsZero() {
		t.Errorf("Expected no migrations on second run, got %s", group)
	}
}

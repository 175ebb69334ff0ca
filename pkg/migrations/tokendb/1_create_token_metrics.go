package tokendb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsight/token-metrics/pkg/pgutil/migrations"
	"github.com/chainsight/token-metrics/pkg/tokendb/dao"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("creating token_metrics table...")
			if err := migrations.CreateSchema(ctx, db, &dao.TokenMetricDao{}); err != nil {
				return err
			}
			if err := migrations.CreateIndexes(ctx, db, "token_metrics", "contract_address", "chain"); err != nil {
				return err
			}
			// Descending index backs the latest-snapshot read path.
			return migrations.CreateIndex(ctx, db, "token_metrics", "idx_token_metrics_updated_at", "updated_at DESC")
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("dropping token_metrics table...")
			return migrations.DropTables(ctx, db, &dao.TokenMetricDao{})
		},
	)
}

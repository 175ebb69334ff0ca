package tokendb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// top_tokens_by_market_cap is the bounded market-cap ranking: tokens with a
// positive market cap, one row per contract address (most recent snapshot
// wins), ranked descending, capped at 10000 rows. It is refreshed
// periodically by ranking.Refresher and is expected to be stale in between.
// The unique index is required for REFRESH ... CONCURRENTLY.
func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("creating top_tokens_by_market_cap materialized view...")
			if _, err := db.ExecContext(ctx, `
				CREATE MATERIALIZED VIEW top_tokens_by_market_cap AS
				SELECT * FROM (
					SELECT DISTINCT ON (contract_address) *
					FROM token_metrics
					WHERE market_cap_usd > 0
					ORDER BY contract_address, updated_at DESC, id DESC
				) ranked
				ORDER BY market_cap_usd DESC
				LIMIT 10000
				WITH DATA
			`); err != nil {
				return err
			}
			_, err := db.ExecContext(ctx, `
				CREATE UNIQUE INDEX idx_top_tokens_contract_address
				ON top_tokens_by_market_cap (contract_address)
			`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("dropping top_tokens_by_market_cap materialized view...")
			_, err := db.ExecContext(ctx, `DROP MATERIALIZED VIEW IF EXISTS top_tokens_by_market_cap`)
			return err
		},
	)
}

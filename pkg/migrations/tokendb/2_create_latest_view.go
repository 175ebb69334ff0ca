package tokendb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// latest_token_metrics exposes, per (contract_address, chain), the row with
// the maximum updated_at. Ties break towards the highest id, i.e. the row
// inserted last. On the unique-per-key table the view is a thin identity
// projection, but every read goes through it so the tie-break rule is pinned
// in one place.
func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("creating latest_token_metrics view...")
			_, err := db.ExecContext(ctx, `
				CREATE VIEW latest_token_metrics AS
				SELECT DISTINCT ON (contract_address, chain) *
				FROM token_metrics
				ORDER BY contract_address, chain, updated_at DESC, id DESC
			`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("dropping latest_token_metrics view...")
			_, err := db.ExecContext(ctx, `DROP VIEW IF EXISTS latest_token_metrics`)
			return err
		},
	)
}

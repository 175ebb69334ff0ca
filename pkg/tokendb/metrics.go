package tokendb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsight/token-metrics/pkg/token"
	"github.com/chainsight/token-metrics/pkg/tokendb/dao"
)

// UpsertMetrics writes a batch of observations in a single
// INSERT ... ON CONFLICT statement. On conflict with an existing
// (contract_address, chain) row, decimals and first_tx_date keep the first
// non-null value ever stored (see token.Merge for the reference semantics);
// every other mutable column is overwritten from the incoming observation.
//
// The statement is atomic per row, so concurrent writers for the same key
// serialize inside Postgres; callers must never read-then-write around it.
func (s *Store) UpsertMetrics(ctx context.Context, metrics []token.Metric) (int, error) {
	if len(metrics) == 0 {
		return 0, nil
	}

	daos := make([]*dao.TokenMetricDao, len(metrics))
	for i := range metrics {
		daos[i] = dao.FromMetric(&metrics[i])
	}

	res, err := s.db.NewInsert().
		Model(&daos).
		On("CONFLICT (contract_address, chain) DO UPDATE").
		Set("decimals = COALESCE(tm.decimals, EXCLUDED.decimals)").
		Set("first_tx_date = COALESCE(tm.first_tx_date, EXCLUDED.first_tx_date)").
		Set("symbol = EXCLUDED.symbol").
		Set("name = EXCLUDED.name").
		Set("price_usd = EXCLUDED.price_usd").
		Set("market_cap_usd = EXCLUDED.market_cap_usd").
		Set("supply = EXCLUDED.supply").
		Set("largest_lp_pool_usd = EXCLUDED.largest_lp_pool_usd").
		Set("view_source = EXCLUDED.view_source").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert token metrics: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return len(metrics), nil
	}
	return int(affected), nil
}

// GetLatest returns the current snapshot for a token on a chain, read through
// the latest_token_metrics view. Returns ErrMetricNotFound for unknown keys.
func (s *Store) GetLatest(ctx context.Context, contractAddress, chain string) (*token.Metric, error) {
	row := new(dao.TokenMetricDao)
	err := s.db.NewSelect().
		Model(row).
		ModelTableExpr("? AS tm", bun.Ident(LatestView)).
		Where("tm.contract_address = ?", contractAddress).
		Where("tm.chain = ?", chain).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMetricNotFound
		}
		return nil, fmt.Errorf("failed to get latest metrics for %s/%s: %w", chain, contractAddress, err)
	}
	return row.ToMetric(), nil
}

// TopByMarketCap returns the highest-capitalized tokens from the materialized
// ranking, most capitalized first. The ranking only ever contains rows with a
// positive market cap, one row per contract address, at most RankingLimit
// rows, and is as stale as the last refresh cycle.
func (s *Store) TopByMarketCap(ctx context.Context, limit int) ([]*token.Metric, error) {
	if limit <= 0 || limit > RankingLimit {
		limit = RankingLimit
	}

	var rows []dao.TokenMetricDao
	err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS tm", bun.Ident(RankingView)).
		OrderExpr("tm.market_cap_usd DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get top tokens: %w", err)
	}

	metrics := make([]*token.Metric, len(rows))
	for i := range rows {
		metrics[i] = rows[i].ToMetric()
	}
	return metrics, nil
}

// CountMetrics returns the total number of persisted snapshots.
func (s *Store) CountMetrics(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().
		Model((*dao.TokenMetricDao)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count token metrics: %w", err)
	}
	return count, nil
}

// RefreshRanking rebuilds the materialized market-cap ranking. CONCURRENTLY
// keeps readers unblocked; it requires the unique index the migration creates.
func (s *Store) RefreshRanking(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+RankingView)
	if err != nil {
		return fmt.Errorf("failed to refresh %s: %w", RankingView, err)
	}
	return nil
}

// VacuumAnalyze optimizes the token_metrics table after heavy upsert churn.
func (s *Store) VacuumAnalyze(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM ANALYZE token_metrics"); err != nil {
		return fmt.Errorf("failed to vacuum analyze token_metrics: %w", err)
	}
	return nil
}

package tokendb_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	migtokendb "github.com/chainsight/token-metrics/pkg/migrations/tokendb"
	"github.com/chainsight/token-metrics/pkg/pgutil"
	"github.com/chainsight/token-metrics/pkg/token"
	"github.com/chainsight/token-metrics/pkg/tokendb"
)

func setupStore(t *testing.T) (*tokendb.Store, func()) {
	t.Helper()
	db, cleanup := pgutil.SetupTestDB(t)
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, migtokendb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		cleanup()
		t.Fatalf("migrator.Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		cleanup()
		t.Fatalf("migrator.Migrate() failed: %v", err)
	}

	return tokendb.NewStore(db), cleanup
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestUpsertMetrics_InsertThenRead(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	n, err := store.UpsertMetrics(ctx, []token.Metric{{
		ContractAddress: "So11111111111111111111111111111111111111112",
		Chain:           "solana",
		Decimals:        intPtr(9),
		Symbol:          "SOL",
		Name:            "Wrapped SOL",
		PriceUSD:        188,
		MarketCapUSD:    1e10,
		Supply:          5e8,
		ViewSource:      "sol_500_swaps_7_days",
		UpdatedAt:       now,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetLatest(ctx, "So11111111111111111111111111111111111111112", "solana")
	require.NoError(t, err)
	assert.Equal(t, "SOL", got.Symbol)
	assert.Equal(t, 188.0, got.PriceUSD)
	require.NotNil(t, got.Decimals)
	assert.Equal(t, 9, *got.Decimals)
	assert.False(t, got.CreatedAt.IsZero(), "created_at should be set by the database")
}

// Two writes to the same key: decimals and first_tx_date keep the first
// non-null value, everything else takes the second write.
func TestUpsertMetrics_PreservesAppendOnceFields(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	firstTx := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	laterTx := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t0 := time.Now().UTC().Truncate(time.Microsecond)

	_, err := store.UpsertMetrics(ctx, []token.Metric{{
		ContractAddress: "ABC",
		Chain:           "solana",
		Decimals:        intPtr(6),
		FirstTxDate:     timePtr(firstTx),
		PriceUSD:        0.5,
		ViewSource:      "sol_1000_swaps_3_days",
		UpdatedAt:       t0,
	}})
	require.NoError(t, err)

	_, err = store.UpsertMetrics(ctx, []token.Metric{{
		ContractAddress: "ABC",
		Chain:           "solana",
		Decimals:        intPtr(9),
		FirstTxDate:     timePtr(laterTx),
		PriceUSD:        1.5,
		ViewSource:      "sol_500_swaps_7_days",
		UpdatedAt:       t0.Add(time.Minute),
	}})
	require.NoError(t, err)

	got, err := store.GetLatest(ctx, "ABC", "solana")
	require.NoError(t, err)

	require.NotNil(t, got.Decimals)
	assert.Equal(t, 6, *got.Decimals, "decimals must keep the first write")
	require.NotNil(t, got.FirstTxDate)
	assert.True(t, got.FirstTxDate.Equal(firstTx), "first_tx_date must keep the first write")
	assert.Equal(t, 1.5, got.PriceUSD, "price must take the last write")
	assert.Equal(t, "sol_500_swaps_7_days", got.ViewSource, "view_source must take the last write")

	// Still exactly one row for the key
	count, err := store.CountMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// A write with null append-once fields leaves a gap a later write may fill.
func TestUpsertMetrics_FillsMissingAppendOnceFields(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	t0 := time.Now().UTC().Truncate(time.Microsecond)

	_, err := store.UpsertMetrics(ctx, []token.Metric{{
		ContractAddress: "DEF",
		Chain:           "ethereum",
		PriceUSD:        2,
		UpdatedAt:       t0,
	}})
	require.NoError(t, err)

	firstTx := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.UpsertMetrics(ctx, []token.Metric{{
		ContractAddress: "DEF",
		Chain:           "ethereum",
		Decimals:        intPtr(18),
		FirstTxDate:     timePtr(firstTx),
		PriceUSD:        3,
		UpdatedAt:       t0.Add(time.Minute),
	}})
	require.NoError(t, err)

	got, err := store.GetLatest(ctx, "DEF", "ethereum")
	require.NoError(t, err)
	require.NotNil(t, got.Decimals)
	assert.Equal(t, 18, *got.Decimals)
	require.NotNil(t, got.FirstTxDate)
	assert.True(t, got.FirstTxDate.Equal(firstTx))
}

func TestUpsertMetrics_SameAddressDifferentChains(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, chain := range []string{"solana", "ethereum"} {
		_, err := store.UpsertMetrics(ctx, []token.Metric{{
			ContractAddress: "SHARED",
			Chain:           chain,
			PriceUSD:        1,
			UpdatedAt:       now,
		}})
		require.NoError(t, err)
	}

	count, err := store.CountMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "keys on different chains must not collide")
}

func TestGetLatest_NotFound(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	_, err := store.GetLatest(context.Background(), "missing", "solana")
	assert.True(t, errors.Is(err, tokendb.ErrMetricNotFound), "expected ErrMetricNotFound, got %v", err)
}

func TestTopByMarketCap_RankingProperties(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := []token.Metric{
		{ContractAddress: "AAA", Chain: "solana", MarketCapUSD: 300, UpdatedAt: now},
		{ContractAddress: "BBB", Chain: "solana", MarketCapUSD: 100, UpdatedAt: now},
		{ContractAddress: "CCC", Chain: "solana", MarketCapUSD: 200, UpdatedAt: now},
		// Zero market cap must never appear in the ranking
		{ContractAddress: "ZZZ", Chain: "solana", MarketCapUSD: 0, UpdatedAt: now},
	}
	_, err := store.UpsertMetrics(ctx, batch)
	require.NoError(t, err)

	require.NoError(t, store.RefreshRanking(ctx))

	top, err := store.TopByMarketCap(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)

	seen := map[string]bool{}
	for i, m := range top {
		assert.Greater(t, m.MarketCapUSD, 0.0, "ranking must not contain non-positive market caps")
		assert.False(t, seen[m.ContractAddress], "duplicate contract address %s", m.ContractAddress)
		seen[m.ContractAddress] = true
		if i > 0 {
			assert.GreaterOrEqual(t, top[i-1].MarketCapUSD, m.MarketCapUSD, "ranking must be descending")
		}
	}
	assert.Equal(t, "AAA", top[0].ContractAddress)

	// Limit is honored
	top2, err := store.TopByMarketCap(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top2, 2)
}

func TestTopByMarketCap_StaleUntilRefresh(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	_, err := store.UpsertMetrics(ctx, []token.Metric{
		{ContractAddress: "AAA", Chain: "solana", MarketCapUSD: 50, UpdatedAt: now},
	})
	require.NoError(t, err)

	// The write is not visible in the ranking until a refresh cycle runs.
	top, err := store.TopByMarketCap(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	require.NoError(t, store.RefreshRanking(ctx))

	top, err = store.TopByMarketCap(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestUpsertMetrics_BatchOfMany(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := make([]token.Metric, 250)
	for i := range batch {
		batch[i] = token.Metric{
			ContractAddress: fmt.Sprintf("token-%03d", i),
			Chain:           "solana",
			PriceUSD:        float64(i),
			UpdatedAt:       now,
		}
	}

	n, err := store.UpsertMetrics(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	count, err := store.CountMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250, count)
}

// Package tokendb provides database operations for token metric snapshots.
package tokendb

import (
	"errors"

	"github.com/uptrace/bun"
)

// ErrMetricNotFound is returned when no snapshot exists for a key.
var ErrMetricNotFound = errors.New("token metric not found")

// Names of the derived read objects created by the migrations.
const (
	LatestView  = "latest_token_metrics"
	RankingView = "top_tokens_by_market_cap"
)

// RankingLimit bounds the materialized market-cap ranking.
const RankingLimit = 10000

// Store provides database operations for the token metrics service
type Store struct {
	db *bun.DB
}

// NewStore creates a new database store on top of an existing connection
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle for advanced queries
func (s *Store) DB() *bun.DB {
	return s.db
}

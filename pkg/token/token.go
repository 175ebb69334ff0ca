// Package token holds the domain model for token metric snapshots.
package token

import "time"

// Metric represents one observed snapshot of a token's on-chain metadata and
// market metrics, scoped to a blockchain network. Exactly one Metric is
// persisted per (ContractAddress, Chain) pair.
type Metric struct {
	ContractAddress string
	Chain           string

	// Decimals and FirstTxDate are append-once facts: the first observed
	// non-nil value sticks, later observations never overwrite it.
	Decimals    *int
	FirstTxDate *time.Time

	Symbol           string
	Name             string
	PriceUSD         float64
	MarketCapUSD     float64
	Supply           float64
	LargestLPPoolUSD float64

	// ViewSource tags the upstream feed that produced this snapshot,
	// e.g. "sol_500_swaps_7_days".
	ViewSource string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key identifies a token on a specific chain.
type Key struct {
	ContractAddress string
	Chain           string
}

// Key returns the identity of the metric.
func (m *Metric) Key() Key {
	return Key{ContractAddress: m.ContractAddress, Chain: m.Chain}
}

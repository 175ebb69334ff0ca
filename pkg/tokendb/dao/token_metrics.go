// Package dao contains data access objects mapping to tokendb tables.
package dao

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsight/token-metrics/pkg/token"
)

// TokenMetricDao maps directly to the 'token_metrics' table in PostgreSQL.
// The unique constraint on (contract_address, chain) keeps one row per token
// per chain; writes go through the ON CONFLICT upsert in tokendb.Store.
type TokenMetricDao struct {
	bun.BaseModel `bun:"table:token_metrics,alias:tm"`

	ID              int64      `json:"id" bun:",pk,autoincrement"`
	ContractAddress string     `json:"contract_address" bun:",notnull,type:varchar(48),unique:unique_token_chain"`
	Chain           string     `json:"chain" bun:",notnull,type:varchar(50),unique:unique_token_chain"`
	Decimals        *int       `json:"decimals,omitempty" bun:"decimals"`
	Symbol          string     `json:"symbol,omitempty" bun:",nullzero,type:varchar(20)"`
	Name            string     `json:"name,omitempty" bun:",nullzero,type:varchar(255)"`
	PriceUSD        float64    `json:"price_usd" bun:"price_usd,type:double precision,default:0"`
	MarketCapUSD    float64    `json:"market_cap_usd" bun:"market_cap_usd,type:double precision,default:0"`
	Supply          float64    `json:"supply" bun:"supply,type:double precision,default:0"`
	LargestLPPool   float64    `json:"largest_lp_pool_usd" bun:"largest_lp_pool_usd,type:double precision,default:0"`
	FirstTxDate     *time.Time `json:"first_tx_date,omitempty" bun:"first_tx_date"`
	CreatedAt       time.Time  `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `json:"updated_at" bun:",nullzero,notnull,default:current_timestamp"`
	ViewSource      string     `json:"view_source,omitempty" bun:",nullzero,type:varchar(100)"`
}

// FromMetric converts a domain metric into its DAO representation.
func FromMetric(m *token.Metric) *TokenMetricDao {
	return &TokenMetricDao{
		ContractAddress: m.ContractAddress,
		Chain:           m.Chain,
		Decimals:        m.Decimals,
		Symbol:          m.Symbol,
		Name:            m.Name,
		PriceUSD:        m.PriceUSD,
		MarketCapUSD:    m.MarketCapUSD,
		Supply:          m.Supply,
		LargestLPPool:   m.LargestLPPoolUSD,
		FirstTxDate:     m.FirstTxDate,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		ViewSource:      m.ViewSource,
	}
}

// ToMetric converts a DAO row back into the domain metric.
func (d *TokenMetricDao) ToMetric() *token.Metric {
	return &token.Metric{
		ContractAddress:  d.ContractAddress,
		Chain:            d.Chain,
		Decimals:         d.Decimals,
		Symbol:           d.Symbol,
		Name:             d.Name,
		PriceUSD:         d.PriceUSD,
		MarketCapUSD:     d.MarketCapUSD,
		Supply:           d.Supply,
		LargestLPPoolUSD: d.LargestLPPool,
		FirstTxDate:      d.FirstTxDate,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		ViewSource:       d.ViewSource,
	}
}

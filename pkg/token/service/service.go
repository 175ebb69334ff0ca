// Package service implements the token metrics application service.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsight/token-metrics/internal/metrics"
	apperrors "github.com/chainsight/token-metrics/pkg/app/errors"
	"github.com/chainsight/token-metrics/pkg/config"
	"github.com/chainsight/token-metrics/pkg/token"
	"github.com/chainsight/token-metrics/pkg/tokendb"
)

// Store is the persistence surface the service needs.
type Store interface {
	UpsertMetrics(ctx context.Context, metrics []token.Metric) (int, error)
	GetLatest(ctx context.Context, contractAddress, chain string) (*token.Metric, error)
	TopByMarketCap(ctx context.Context, limit int) ([]*token.Metric, error)
	CountMetrics(ctx context.Context) (int, error)
}

// Observation is one incoming token snapshot from an upstream feed.
type Observation struct {
	ContractAddress  string     `json:"contract_address" validate:"required,max=48"`
	Chain            string     `json:"chain" validate:"omitempty,max=50"`
	Decimals         *int       `json:"decimals,omitempty" validate:"omitempty,gte=0,lte=255"`
	Symbol           string     `json:"symbol,omitempty" validate:"max=20"`
	Name             string     `json:"name,omitempty" validate:"max=255"`
	PriceUSD         float64    `json:"price_usd" validate:"gte=0"`
	MarketCapUSD     float64    `json:"market_cap_usd" validate:"gte=0"`
	Supply           float64    `json:"supply" validate:"gte=0"`
	LargestLPPoolUSD float64    `json:"largest_lp_pool_usd" validate:"gte=0"`
	FirstTxDate      *time.Time `json:"first_tx_date,omitempty"`
}

// IngestRequest is a batch of observations from a single upstream feed.
type IngestRequest struct {
	ViewSource   string        `json:"view_source" validate:"required,max=100"`
	Observations []Observation `json:"observations" validate:"required,min=1,dive"`
}

// IngestResult reports what a batch upsert did.
type IngestResult struct {
	BatchID  string `json:"batch_id"`
	Upserted int    `json:"upserted"`
}

// Service provides the token metrics operations behind the HTTP API.
type Service struct {
	store    Store
	cfg      config.IngestConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new token metrics service
func NewService(store Store, cfg config.IngestConfig, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// RecordObservations validates and persists a batch of observations. Each
// observation is merged into its (contract_address, chain) row under the
// append-once policy for decimals and first_tx_date; see token.Merge. All
// rows in the batch share one update timestamp, matching how upstream feeds
// snapshot their data.
func (s *Service) RecordObservations(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid observation batch")
	}
	if s.cfg.MaxObservations > 0 && len(req.Observations) > s.cfg.MaxObservations {
		return nil, apperrors.BadRequestError(
			fmt.Errorf("%d observations exceeds limit %d", len(req.Observations), s.cfg.MaxObservations),
			"observation batch too large",
		)
	}

	batchID := uuid.NewString()
	now := time.Now().UTC()

	// Deduplicate by key keeping the last occurrence: a multi-row INSERT
	// cannot touch the same row twice in one ON CONFLICT statement.
	index := make(map[token.Key]int, len(req.Observations))
	rows := make([]token.Metric, 0, len(req.Observations))
	for i := range req.Observations {
		m := s.toMetric(&req.Observations[i], req.ViewSource, now)
		if at, ok := index[m.Key()]; ok {
			rows[at] = m
			continue
		}
		index[m.Key()] = len(rows)
		rows = append(rows, m)
	}

	total := 0
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := s.store.UpsertMetrics(ctx, rows[start:end])
		if err != nil {
			metrics.ObservationBatches.WithLabelValues(req.ViewSource, "error").Inc()
			s.logger.Error("Observation batch failed",
				zap.String("batch_id", batchID),
				zap.String("view_source", req.ViewSource),
				zap.Int("upserted_before_failure", total),
				zap.Error(err))
			return nil, apperrors.GeneralError(err)
		}
		total += n
	}

	for i := range rows {
		metrics.MetricsUpserted.WithLabelValues(rows[i].Chain, req.ViewSource).Inc()
	}
	metrics.ObservationBatches.WithLabelValues(req.ViewSource, "ok").Inc()
	metrics.BatchSize.Observe(float64(len(rows)))

	s.logger.Info("Observation batch upserted",
		zap.String("batch_id", batchID),
		zap.String("view_source", req.ViewSource),
		zap.Int("received", len(req.Observations)),
		zap.Int("upserted", total))

	return &IngestResult{BatchID: batchID, Upserted: total}, nil
}

// Latest returns the current snapshot for a token on a chain.
func (s *Service) Latest(ctx context.Context, chain, contractAddress string) (*token.Metric, error) {
	if contractAddress == "" || chain == "" {
		return nil, apperrors.BadRequestError(nil, "contract address and chain are required")
	}

	m, err := s.store.GetLatest(ctx, contractAddress, chain)
	if err != nil {
		if errors.Is(err, tokendb.ErrMetricNotFound) {
			metrics.SnapshotReads.WithLabelValues("not_found").Inc()
			return nil, apperrors.ResourceNotFoundError(err, "token not found")
		}
		metrics.SnapshotReads.WithLabelValues("error").Inc()
		return nil, apperrors.GeneralError(err)
	}

	metrics.SnapshotReads.WithLabelValues("ok").Inc()
	return m, nil
}

// Top returns the highest-capitalized tokens, most capitalized first.
func (s *Service) Top(ctx context.Context, limit int) ([]*token.Metric, error) {
	res, err := s.store.TopByMarketCap(ctx, limit)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return res, nil
}

// Stats returns the total number of persisted snapshots.
func (s *Service) Stats(ctx context.Context) (int, error) {
	count, err := s.store.CountMetrics(ctx)
	if err != nil {
		return 0, apperrors.GeneralError(err)
	}
	return count, nil
}

func (s *Service) toMetric(o *Observation, viewSource string, now time.Time) token.Metric {
	chain := o.Chain
	if chain == "" {
		chain = s.cfg.DefaultChain
	}
	return token.Metric{
		ContractAddress:  o.ContractAddress,
		Chain:            chain,
		Decimals:         o.Decimals,
		Symbol:           o.Symbol,
		Name:             o.Name,
		PriceUSD:         o.PriceUSD,
		MarketCapUSD:     o.MarketCapUSD,
		Supply:           o.Supply,
		LargestLPPoolUSD: o.LargestLPPoolUSD,
		FirstTxDate:      o.FirstTxDate,
		ViewSource:       viewSource,
		UpdatedAt:        now,
	}
}

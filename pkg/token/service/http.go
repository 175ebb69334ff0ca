package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/chainsight/token-metrics/pkg/app/errors"
	apphttp "github.com/chainsight/token-metrics/pkg/app/http"
	"github.com/chainsight/token-metrics/pkg/token"
)

// metricResponse is the wire shape of a token metric snapshot.
type metricResponse struct {
	ContractAddress  string     `json:"contract_address"`
	Chain            string     `json:"chain"`
	Decimals         *int       `json:"decimals,omitempty"`
	Symbol           string     `json:"symbol,omitempty"`
	Name             string     `json:"name,omitempty"`
	PriceUSD         float64    `json:"price_usd"`
	MarketCapUSD     float64    `json:"market_cap_usd"`
	Supply           float64    `json:"supply"`
	LargestLPPoolUSD float64    `json:"largest_lp_pool_usd"`
	FirstTxDate      *time.Time `json:"first_tx_date,omitempty"`
	ViewSource       string     `json:"view_source,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toMetricResponse(m *token.Metric) *metricResponse {
	return &metricResponse{
		ContractAddress:  m.ContractAddress,
		Chain:            m.Chain,
		Decimals:         m.Decimals,
		Symbol:           m.Symbol,
		Name:             m.Name,
		PriceUSD:         m.PriceUSD,
		MarketCapUSD:     m.MarketCapUSD,
		Supply:           m.Supply,
		LargestLPPoolUSD: m.LargestLPPoolUSD,
		FirstTxDate:      m.FirstTxDate,
		ViewSource:       m.ViewSource,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// RegisterRoutes mounts the token metrics API on the given router.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/tokens/observations", apphttp.HandleError(s.handleRecordObservations))
	r.Get("/tokens/top", apphttp.HandleError(s.handleTop))
	r.Get("/tokens/stats", apphttp.HandleError(s.handleStats))
	r.Get("/tokens/{chain}/{contractAddress}", apphttp.HandleError(s.handleLatest))
}

func (s *Service) handleRecordObservations(w http.ResponseWriter, r *http.Request) error {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequestError(err, "malformed request body")
	}

	res, err := s.RecordObservations(r.Context(), &req)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleLatest(w http.ResponseWriter, r *http.Request) error {
	chain := chi.URLParam(r, "chain")
	contractAddress := chi.URLParam(r, "contractAddress")

	m, err := s.Latest(r.Context(), chain, contractAddress)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, toMetricResponse(m))
}

func (s *Service) handleTop(w http.ResponseWriter, r *http.Request) error {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return apperrors.BadRequestError(fmt.Errorf("limit=%q", raw), "limit must be a positive integer")
		}
		limit = parsed
	}

	ms, err := s.Top(r.Context(), limit)
	if err != nil {
		return err
	}

	out := make([]*metricResponse, len(ms))
	for i, m := range ms {
		out[i] = toMetricResponse(m)
	}

	return writeJSON(w, http.StatusOK, map[string]any{"tokens": out, "count": len(out)})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) error {
	count, err := s.Stats(r.Context())
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, map[string]int{"total_tokens": count})
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

package rpc

import (
	"context"
	"encoding/json"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core"
	"shopchain/core/pricing"
	"shopchain/native/token"
)

type setPriceParams struct {
	Price      string `json:"price"`
	ObservedAt int64  `json:"observedAt,omitempty"`
}

type historyParams struct {
	Limit uint64 `json:"limit,omitempty"`
}

type convertParams struct {
	Cents uint64 `json:"cents"`
}

type observationResult struct {
	Price      string `json:"price"`
	ObservedAt uint64 `json:"observedAt"`
	RecordedAt uint64 `json:"recordedAt"`
	Updater    string `json:"updater"`
}

type convertResult struct {
	Cents      uint64 `json:"cents"`
	Tokens     string `json:"tokens"`
	Price      string `json:"price"`
	ObservedAt int64  `json:"observedAt"`
	Status     string `json:"status"`
}

func newObservationResult(obs pricing.Observation) observationResult {
	return observationResult{
		Price:      formatAmount(obs.Price),
		ObservedAt: obs.ObservedAt,
		RecordedAt: obs.RecordedAt,
		Updater:    formatAddress(obs.Updater),
	}
}

func (s *Server) oracleMethods() map[string]method {
	return map[string]method{
		"oracle_setPrice": {auth: true, fn: s.handleOracleSetPrice},
		"oracle_latest":   {fn: s.handleOracleLatest},
		"oracle_status":   {fn: s.handleOracleStatus},
		"oracle_history":  {fn: s.handleOracleHistory},
		"oracle_convert":  {fn: s.handleOracleConvert},
	}
}

func (s *Server) handleOracleSetPrice(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params setPriceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		return nil, err
	}
	obs, err := core.Do(ctx, s.node.Executor(), "oracle_setPrice", func() (pricing.Observation, error) {
		return s.node.Oracle().SetPrice(caller, price, params.ObservedAt)
	})
	if err != nil {
		return nil, err
	}
	return newObservationResult(obs), nil
}

func (s *Server) handleOracleLatest(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	obs, err := core.Query(s.node.Executor(), s.node.Oracle().Latest)
	if err != nil {
		return nil, err
	}
	return newObservationResult(obs), nil
}

func (s *Server) handleOracleStatus(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	status, err := core.Query(s.node.Executor(), s.node.Oracle().Status)
	if err != nil {
		return nil, err
	}
	return map[string]string{"status": string(status)}, nil
}

func (s *Server) handleOracleHistory(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params historyParams
	if len(raw) > 0 {
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
	}
	history, err := core.Query(s.node.Executor(), func() ([]pricing.Observation, error) {
		return s.node.Oracle().History(params.Limit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]observationResult, 0, len(history))
	for _, obs := range history {
		out = append(out, newObservationResult(obs))
	}
	return out, nil
}

// handleOracleConvert quotes a USD cent amount in token base units at the
// current price.
func (s *Server) handleOracleConvert(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params convertParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	return core.Query(s.node.Executor(), func() (convertResult, error) {
		quote, err := s.node.Oracle().Quote(token.Decimals)
		if err != nil {
			return convertResult{}, err
		}
		tokens, err := quote.USDCentsToTokens(params.Cents)
		if err != nil {
			return convertResult{}, err
		}
		return convertResult{
			Cents:      params.Cents,
			Tokens:     formatAmount(tokens),
			Price:      formatAmount(quote.Price),
			ObservedAt: quote.ObservedAt,
			Status:     string(quote.Status),
		}, nil
	})
}

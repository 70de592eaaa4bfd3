package rpc

import (
	"context"
	"encoding/json"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core"
	"shopchain/native/referral"
)

type registerReferralParams struct {
	Referrer string `json:"referrer"`
}

type chainParams struct {
	Address string `json:"address"`
	Depth   int    `json:"depth,omitempty"`
}

type levelsParams struct {
	Levels []uint32 `json:"levels"`
}

type referralNodeResult struct {
	Address       string `json:"address"`
	Referrer      string `json:"referrer,omitempty"`
	RegisteredAt  uint64 `json:"registeredAt"`
	ReferralCount uint64 `json:"referralCount"`
	EarnedCents   uint64 `json:"earnedCents"`
	EarnedTokens  string `json:"earnedTokens"`
}

type levelsResult struct {
	Levels  []uint32 `json:"levels"`
	Version uint64   `json:"version"`
}

func (s *Server) referralMethods() map[string]method {
	return map[string]method{
		"referral_register":   {auth: true, fn: s.handleReferralRegister},
		"referral_setLevels":  {auth: true, fn: s.handleReferralSetLevels},
		"referral_referrerOf": {fn: s.handleReferralReferrerOf},
		"referral_node":       {fn: s.handleReferralNode},
		"referral_chain":      {fn: s.handleReferralChain},
		"referral_levels":     {fn: s.handleReferralLevels},
	}
}

// handleReferralRegister binds the caller to a referrer. The edge can only
// be set once.
func (s *Server) handleReferralRegister(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params registerReferralParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	referrer, err := parseAddress("referrer", params.Referrer)
	if err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "referral_register", func() error {
		return s.node.Referral().RegisterEdge(caller, referrer)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleReferralSetLevels(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params levelsParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "referral_setLevels", func() error {
		return s.node.Referral().SetLevelCommissions(caller, params.Levels)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleReferralReferrerOf(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	type result struct {
		Referrer string `json:"referrer,omitempty"`
		Found    bool   `json:"found"`
	}
	return core.Query(s.node.Executor(), func() (result, error) {
		referrer, ok, err := s.node.Referral().ReferrerOf(addr)
		if err != nil || !ok {
			return result{}, err
		}
		return result{Referrer: formatAddress(referrer), Found: true}, nil
	})
}

func (s *Server) handleReferralNode(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	node, err := core.Query(s.node.Executor(), func() (referral.Node, error) {
		return s.node.Referral().Node(addr)
	})
	if err != nil {
		return nil, err
	}
	out := referralNodeResult{
		Address:       formatAddress(addr),
		RegisteredAt:  node.RegisteredAt,
		ReferralCount: node.ReferralCount,
		EarnedCents:   node.EarnedCents,
		EarnedTokens:  formatAmount(node.EarnedTokens),
	}
	if node.HasReferrer() {
		out.Referrer = formatAddress(node.Referrer)
	}
	return out, nil
}

func (s *Server) handleReferralChain(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params chainParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	depth := params.Depth
	if depth <= 0 || depth > referral.MaxLevels {
		depth = referral.MaxLevels
	}
	chain, err := core.Query(s.node.Executor(), func() ([]ethcommon.Address, error) {
		return s.node.Referral().Chain(addr, depth)
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(chain))
	for _, a := range chain {
		out = append(out, formatAddress(a))
	}
	return out, nil
}

func (s *Server) handleReferralLevels(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	return core.Query(s.node.Executor(), func() (levelsResult, error) {
		levels, version, err := s.node.Referral().Levels()
		return levelsResult{Levels: levels, Version: version}, err
	})
}

package rpc

import (
	"context"
	"encoding/json"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core"
	"shopchain/native/airdrop"
)

type createCampaignParams struct {
	Name     string `json:"name"`
	Root     string `json:"root"`
	Source   string `json:"source"`
	Total    string `json:"total"`
	StartsAt uint64 `json:"startsAt,omitempty"`
	EndsAt   uint64 `json:"endsAt,omitempty"`
}

type campaignActiveParams struct {
	ID     uint64 `json:"id"`
	Active bool   `json:"active"`
}

type claimParams struct {
	ID     uint64   `json:"id"`
	Amount string   `json:"amount"`
	Proof  []string `json:"proof"`
}

type claimedParams struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
}

type campaignResult struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Root      string `json:"root"`
	Source    string `json:"source"`
	Total     string `json:"total"`
	Claimed   string `json:"claimed"`
	Remaining string `json:"remaining"`
	StartsAt  uint64 `json:"startsAt"`
	EndsAt    uint64 `json:"endsAt"`
	Active    bool   `json:"active"`
}

func newCampaignResult(c airdrop.Campaign) campaignResult {
	return campaignResult{
		ID:        c.ID,
		Name:      c.Name,
		Root:      c.Root.Hex(),
		Source:    formatAddress(c.Source),
		Total:     formatAmount(c.Total),
		Claimed:   formatAmount(c.Claimed),
		Remaining: formatAmount(c.Remaining()),
		StartsAt:  c.StartsAt,
		EndsAt:    c.EndsAt,
		Active:    c.Active,
	}
}

func parseHash(field, value string) (ethcommon.Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if len(trimmed) != 2*ethcommon.HashLength {
		return ethcommon.Hash{}, invalidParams(field + ": expected 32-byte hex hash")
	}
	return ethcommon.HexToHash(trimmed), nil
}

func (s *Server) airdropMethods() map[string]method {
	return map[string]method{
		"airdrop_campaign":          {fn: s.handleAirdropCampaign},
		"airdrop_claimed":           {fn: s.handleAirdropClaimed},
		"airdrop_createCampaign":    {auth: true, fn: s.handleAirdropCreateCampaign},
		"airdrop_setCampaignActive": {auth: true, fn: s.handleAirdropSetCampaignActive},
		"airdrop_claim":             {auth: true, fn: s.handleAirdropClaim},
	}
}

func (s *Server) handleAirdropCampaign(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params idParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	c, err := core.Query(s.node.Executor(), func() (airdrop.Campaign, error) {
		return s.node.Airdrop().Campaign(params.ID)
	})
	if err != nil {
		return nil, err
	}
	return newCampaignResult(c), nil
}

func (s *Server) handleAirdropClaimed(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params claimedParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	claimed, err := core.Query(s.node.Executor(), func() (bool, error) {
		return s.node.Airdrop().Claimed(params.ID, addr)
	})
	if err != nil {
		return nil, err
	}
	return map[string]bool{"claimed": claimed}, nil
}

func (s *Server) handleAirdropCreateCampaign(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params createCampaignParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	root, err := parseHash("root", params.Root)
	if err != nil {
		return nil, err
	}
	source, err := parseAddress("source", params.Source)
	if err != nil {
		return nil, err
	}
	total, err := parseAmount("total", params.Total)
	if err != nil {
		return nil, err
	}
	c, err := core.Do(ctx, s.node.Executor(), "airdrop_createCampaign", func() (airdrop.Campaign, error) {
		return s.node.Airdrop().CreateCampaign(caller, airdrop.Campaign{
			Name:     params.Name,
			Root:     root,
			Source:   source,
			Total:    total,
			StartsAt: params.StartsAt,
			EndsAt:   params.EndsAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return newCampaignResult(c), nil
}

func (s *Server) handleAirdropSetCampaignActive(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params campaignActiveParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "airdrop_setCampaignActive", func() error {
		return s.node.Airdrop().SetCampaignActive(caller, params.ID, params.Active)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleAirdropClaim(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params claimParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	proof := make([]ethcommon.Hash, 0, len(params.Proof))
	for _, p := range params.Proof {
		h, err := parseHash("proof", p)
		if err != nil {
			return nil, err
		}
		proof = append(proof, h)
	}
	if err := s.node.Executor().Execute(ctx, "airdrop_claim", func() error {
		return s.node.Airdrop().Claim(caller, params.ID, amount, proof)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

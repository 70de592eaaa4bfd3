package rpc

import (
	"context"
	"encoding/json"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core"
	"shopchain/native/loyalty"
)

type customerResult struct {
	Address         string `json:"address"`
	Exists          bool   `json:"exists"`
	TotalSpentCents uint64 `json:"totalSpentCents"`
	LoyaltyPoints   uint64 `json:"loyaltyPoints"`
	Tier            uint32 `json:"tier"`
	JoinedAt        uint64 `json:"joinedAt"`
	LastPurchaseAt  uint64 `json:"lastPurchaseAt"`
	CashbackCents   uint64 `json:"cashbackCents"`
	DiscountSaved   uint64 `json:"discountSavedCents"`
	ReferralPoints  uint64 `json:"referralPoints"`
	PurchaseCount   uint64 `json:"purchaseCount"`
	ReferralCount   uint64 `json:"referralCount"`
	BadgeSerial     uint64 `json:"badgeSerial"`
}

type badgeResult struct {
	Owner    string `json:"owner"`
	Tier     uint32 `json:"tier"`
	TierName string `json:"tierName"`
	Serial   uint64 `json:"serial"`
	IssuedAt uint64 `json:"issuedAt"`
	URI      string `json:"uri"`
}

type redeemParams struct {
	Points uint64 `json:"points"`
}

func (s *Server) loyaltyMethods() map[string]method {
	return map[string]method{
		"loyalty_customer":     {fn: s.handleLoyaltyCustomer},
		"loyalty_badge":        {fn: s.handleLoyaltyBadge},
		"loyalty_tiers":        {fn: s.handleLoyaltyTiers},
		"loyalty_addTier":      {auth: true, fn: s.handleLoyaltyAddTier},
		"loyalty_redeemPoints": {auth: true, fn: s.handleLoyaltyRedeemPoints},
	}
}

func (s *Server) handleLoyaltyCustomer(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	return core.Query(s.node.Executor(), func() (customerResult, error) {
		rec, ok, err := s.node.Loyalty().Customer(addr)
		if err != nil {
			return customerResult{}, err
		}
		return customerResult{
			Address:         formatAddress(addr),
			Exists:          ok,
			TotalSpentCents: rec.TotalSpentCents,
			LoyaltyPoints:   rec.LoyaltyPoints,
			Tier:            rec.Tier,
			JoinedAt:        rec.JoinedAt,
			LastPurchaseAt:  rec.LastPurchaseAt,
			CashbackCents:   rec.CashbackCents,
			DiscountSaved:   rec.DiscountSaved,
			ReferralPoints:  rec.ReferralPoints,
			PurchaseCount:   rec.PurchaseCount,
			ReferralCount:   rec.ReferralCount,
			BadgeSerial:     rec.BadgeSerial,
		}, nil
	})
}

func (s *Server) handleLoyaltyBadge(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	view, err := core.Query(s.node.Executor(), func() (loyalty.BadgeView, error) {
		return s.node.Loyalty().Badge(addr)
	})
	if err != nil {
		return nil, err
	}
	return badgeResult{
		Owner:    formatAddress(view.Owner),
		Tier:     view.Tier,
		TierName: view.TierName,
		Serial:   view.Serial,
		IssuedAt: view.IssuedAt,
		URI:      view.URI,
	}, nil
}

func (s *Server) handleLoyaltyTiers(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	return core.Query(s.node.Executor(), s.node.Loyalty().Tiers)
}

func (s *Server) handleLoyaltyAddTier(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var tier loyalty.Tier
	if err := decodeParams(raw, &tier); err != nil {
		return nil, err
	}
	index, err := core.Do(ctx, s.node.Executor(), "loyalty_addTier", func() (uint32, error) {
		return s.node.Loyalty().AddTier(caller, tier)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint32{"index": index}, nil
}

// handleLoyaltyRedeemPoints burns the caller's points and returns the
// discount they bought in basis points.
func (s *Server) handleLoyaltyRedeemPoints(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params redeemParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	bps, err := core.Do(ctx, s.node.Executor(), "loyalty_redeemPoints", func() (uint64, error) {
		return s.node.Loyalty().RedeemPoints(caller, params.Points)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"discountBps": bps}, nil
}

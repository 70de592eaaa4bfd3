package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"shopchain/core/types"
)

const (
	TypeAirdropCampaignCreated = "airdrop.campaign.created"
	TypeAirdropClaimed         = "airdrop.claimed"
)

type AirdropCampaignCreated struct {
	ID     uint64
	Root   common.Hash
	Source common.Address
	Total  *big.Int
}

func (AirdropCampaignCreated) EventType() string { return TypeAirdropCampaignCreated }

func (e AirdropCampaignCreated) Event() *types.Event {
	return &types.Event{Type: TypeAirdropCampaignCreated, Attributes: map[string]string{
		"id":     formatUint(e.ID),
		"root":   e.Root.Hex(),
		"source": formatAddress(e.Source),
		"total":  formatAmount(e.Total),
	}}
}

type AirdropClaimed struct {
	Campaign uint64
	Account  common.Address
	Amount   *big.Int
}

func (AirdropClaimed) EventType() string { return TypeAirdropClaimed }

func (e AirdropClaimed) Event() *types.Event {
	return &types.Event{Type: TypeAirdropClaimed, Attributes: map[string]string{
		"campaign": formatUint(e.Campaign),
		"account":  formatAddress(e.Account),
		"amount":   formatAmount(e.Amount),
	}}
}

package airdrop

import "errors"

var (
	// ErrInvalidCampaignOrSource covers unknown, inactive and out-of-window
	// campaigns as well as campaigns without a funding account.
	ErrInvalidCampaignOrSource = errors.New("airdrop: invalid campaign or source")
	ErrAlreadyClaimed          = errors.New("airdrop: already claimed")
	ErrInvalidProof            = errors.New("airdrop: invalid proof")
	ErrCampaignExhausted       = errors.New("airdrop: campaign exhausted")
	ErrInvalidAmount           = errors.New("airdrop: invalid amount")
)

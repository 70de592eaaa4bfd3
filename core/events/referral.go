package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"shopchain/core/types"
)

const (
	TypeReferralRegistered    = "referral.registered"
	TypeReferralRewarded      = "referral.rewarded"
	TypeReferralLevelsUpdated = "referral.levels.updated"
)

type ReferralRegistered struct {
	Referral common.Address
	Referrer common.Address
}

func (ReferralRegistered) EventType() string { return TypeReferralRegistered }

func (e ReferralRegistered) Event() *types.Event {
	return &types.Event{Type: TypeReferralRegistered, Attributes: map[string]string{
		"referral": formatAddress(e.Referral),
		"referrer": formatAddress(e.Referrer),
	}}
}

// ReferralRewarded reports a single commission paid to an ancestor. Level 1
// is the direct referrer.
type ReferralRewarded struct {
	Referrer    common.Address
	Customer    common.Address
	Level       uint32
	AmountCents uint64
	Tokens      *big.Int
}

func (ReferralRewarded) EventType() string { return TypeReferralRewarded }

func (e ReferralRewarded) Event() *types.Event {
	return &types.Event{Type: TypeReferralRewarded, Attributes: map[string]string{
		"referrer":    formatAddress(e.Referrer),
		"customer":    formatAddress(e.Customer),
		"level":       strconv.FormatUint(uint64(e.Level), 10),
		"amountCents": formatUint(e.AmountCents),
		"tokens":      formatAmount(e.Tokens),
	}}
}

type ReferralLevelsUpdated struct {
	Levels  []uint32
	Version uint64
}

func (ReferralLevelsUpdated) EventType() string { return TypeReferralLevelsUpdated }

func (e ReferralLevelsUpdated) Event() *types.Event {
	parts := make([]string, len(e.Levels))
	for i, bps := range e.Levels {
		parts[i] = strconv.FormatUint(uint64(bps), 10)
	}
	return &types.Event{Type: TypeReferralLevelsUpdated, Attributes: map[string]string{
		"levels":  strings.Join(parts, ","),
		"version": formatUint(e.Version),
	}}
}

package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"shopchain/core/types"
)

const (
	// TypeLoyaltyPointsEarned is emitted when a recorded purchase accrues
	// points for the buyer.
	TypeLoyaltyPointsEarned = "loyalty.points.earned"
	// TypeLoyaltyReferralBonus is emitted when the direct referrer of a buyer
	// receives bonus points.
	TypeLoyaltyReferralBonus = "loyalty.referral.bonus"
	// TypeLoyaltyPointsRedeemed is emitted when a customer converts points
	// into a discount.
	TypeLoyaltyPointsRedeemed = "loyalty.points.redeemed"
	// TypeLoyaltyTierUpgraded is emitted when a customer advances to a higher
	// tier.
	TypeLoyaltyTierUpgraded = "loyalty.tier.upgraded"
	// TypeLoyaltyTierAdded is emitted when an administrator appends a tier.
	TypeLoyaltyTierAdded = "loyalty.tier.added"
	// TypeLoyaltyBadgeIssued is emitted when a membership badge is issued or
	// reissued for a new tier.
	TypeLoyaltyBadgeIssued = "loyalty.badge.issued"
)

type LoyaltyPointsEarned struct {
	Customer      common.Address
	Points        uint64
	SpendCents    uint64
	TotalPoints   uint64
	CashbackCents uint64
}

func (LoyaltyPointsEarned) EventType() string { return TypeLoyaltyPointsEarned }

func (e LoyaltyPointsEarned) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyPointsEarned, Attributes: map[string]string{
		"customer":      formatAddress(e.Customer),
		"points":        formatUint(e.Points),
		"spendCents":    formatUint(e.SpendCents),
		"totalPoints":   formatUint(e.TotalPoints),
		"cashbackCents": formatUint(e.CashbackCents),
	}}
}

type LoyaltyReferralBonus struct {
	Referrer common.Address
	Customer common.Address
	Points   uint64
}

func (LoyaltyReferralBonus) EventType() string { return TypeLoyaltyReferralBonus }

func (e LoyaltyReferralBonus) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyReferralBonus, Attributes: map[string]string{
		"referrer": formatAddress(e.Referrer),
		"customer": formatAddress(e.Customer),
		"points":   formatUint(e.Points),
	}}
}

type LoyaltyPointsRedeemed struct {
	Customer    common.Address
	Points      uint64
	DiscountBps uint64
}

func (LoyaltyPointsRedeemed) EventType() string { return TypeLoyaltyPointsRedeemed }

func (e LoyaltyPointsRedeemed) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyPointsRedeemed, Attributes: map[string]string{
		"customer":    formatAddress(e.Customer),
		"points":      formatUint(e.Points),
		"discountBps": formatUint(e.DiscountBps),
	}}
}

type LoyaltyTierUpgraded struct {
	Customer common.Address
	From     uint32
	To       uint32
	Name     string
}

func (LoyaltyTierUpgraded) EventType() string { return TypeLoyaltyTierUpgraded }

func (e LoyaltyTierUpgraded) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyTierUpgraded, Attributes: map[string]string{
		"customer": formatAddress(e.Customer),
		"from":     strconv.FormatUint(uint64(e.From), 10),
		"to":       strconv.FormatUint(uint64(e.To), 10),
		"name":     e.Name,
	}}
}

type LoyaltyTierAdded struct {
	Index uint32
	Name  string
}

func (LoyaltyTierAdded) EventType() string { return TypeLoyaltyTierAdded }

func (e LoyaltyTierAdded) Event() *types.Event {
	return &types.Event{Type: TypeLoyaltyTierAdded, Attributes: map[string]string{
		"index": strconv.FormatUint(uint64(e.Index), 10),
		"name":  e.Name,
	}}
}

// LoyaltyBadgeIssued carries the serial of the badge that was revoked by the
// reissue, zero for a first issuance.
type LoyaltyBadgeIssued struct {
	Owner   common.Address
	Tier    uint32
	Serial  uint64
	Revoked uint64
}

func (LoyaltyBadgeIssued) EventType() string { return TypeLoyaltyBadgeIssued }

func (e LoyaltyBadgeIssued) Event() *types.Event {
	attrs := map[string]string{
		"owner":  formatAddress(e.Owner),
		"tier":   strconv.FormatUint(uint64(e.Tier), 10),
		"serial": formatUint(e.Serial),
	}
	if e.Revoked != 0 {
		attrs["revoked"] = formatUint(e.Revoked)
	}
	return &types.Event{Type: TypeLoyaltyBadgeIssued, Attributes: attrs}
}

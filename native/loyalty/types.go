package loyalty

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	// PointsPerCent is the accrual rate: one point per USD cent spent.
	PointsPerCent = 1
	// ReferralBonusPct is the share of a purchase's points credited to the
	// buyer's direct referrer.
	ReferralBonusPct = 10
	// PointsPerDiscountBps converts redeemed points into discount basis
	// points.
	PointsPerDiscountBps = 100
	// MaxDiscountBps caps a single redemption at 50%.
	MaxDiscountBps = 5_000
	bpsDenominator = 10_000
)

// Tier describes one loyalty level. Tiers are ordered by index and their
// thresholds never decrease.
type Tier struct {
	Name              string `json:"name" yaml:"name"`
	MinPoints         uint64 `json:"minPoints" yaml:"minPoints"`
	MinSpendCents     uint64 `json:"minSpendCents" yaml:"minSpendCents"`
	DiscountBps       uint32 `json:"discountBps" yaml:"discountBps"`
	CashbackBps       uint32 `json:"cashbackBps" yaml:"cashbackBps"`
	StakingBoostBps   uint32 `json:"stakingBoostBps" yaml:"stakingBoostBps"`
	FreeShippingCents uint64 `json:"freeShippingCents" yaml:"freeShippingCents"`
	BadgeURI          string `json:"badgeUri" yaml:"badgeUri"`
}

// DefaultTiers returns the launch tier table.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "Bronze", MinPoints: 0, MinSpendCents: 0, DiscountBps: 0, CashbackBps: 100, StakingBoostBps: 0, FreeShippingCents: 10_000, BadgeURI: "badge://bronze"},
		{Name: "Silver", MinPoints: 1_000, MinSpendCents: 10_000, DiscountBps: 500, CashbackBps: 200, StakingBoostBps: 1_000, FreeShippingCents: 7_500, BadgeURI: "badge://silver"},
		{Name: "Gold", MinPoints: 5_000, MinSpendCents: 50_000, DiscountBps: 1_000, CashbackBps: 300, StakingBoostBps: 2_500, FreeShippingCents: 5_000, BadgeURI: "badge://gold"},
		{Name: "Platinum", MinPoints: 20_000, MinSpendCents: 200_000, DiscountBps: 1_500, CashbackBps: 500, StakingBoostBps: 5_000, FreeShippingCents: 2_500, BadgeURI: "badge://platinum"},
		{Name: "Diamond", MinPoints: 50_000, MinSpendCents: 500_000, DiscountBps: 2_000, CashbackBps: 1_000, StakingBoostBps: 10_000, FreeShippingCents: 0, BadgeURI: "badge://diamond"},
	}
}

// Customer is the loyalty record of one address. It is created lazily and
// never deleted; Tier never decreases.
type Customer struct {
	TotalSpentCents uint64
	LoyaltyPoints   uint64
	Tier            uint32
	JoinedAt        uint64
	LastPurchaseAt  uint64
	CashbackCents   uint64
	DiscountSaved   uint64
	ReferralPoints  uint64
	PurchaseCount   uint64
	BadgeSerial     uint64

	// ReferralCount is read from the referral graph and never stored.
	ReferralCount uint64 `rlp:"-"`
}

// Badge is the membership credential of a customer. Reissuing a badge for a
// new tier replaces the serial.
type Badge struct {
	Owner    ethcommon.Address
	Tier     uint32
	Serial   uint64
	IssuedAt uint64
}

// BadgeView joins a badge with the metadata of its tier.
type BadgeView struct {
	Badge
	TierName string
	URI      string
}

// PurchaseResult reports the outcome of a recorded purchase.
type PurchaseResult struct {
	PointsEarned  uint64
	CashbackCents uint64
	TierBefore    uint32
	TierAfter     uint32
	Referrer      ethcommon.Address
	BonusPoints   uint64
}

// Upgraded reports whether the purchase moved the customer to a higher tier.
func (r PurchaseResult) Upgraded() bool { return r.TierAfter > r.TierBefore }

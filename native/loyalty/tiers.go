package loyalty

import (
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
)

// AddTier appends a tier to the table. Thresholds must not be lower than
// those of the current top tier.
func (l *Ledger) AddTier(caller ethcommon.Address, tier Tier) (uint32, error) {
	if err := common.Authorize(l.st, common.RoleLoyaltyAdmin, caller); err != nil {
		return 0, err
	}
	tiers, err := l.Tiers()
	if err != nil {
		return 0, err
	}
	tier.Name = strings.TrimSpace(tier.Name)
	if err := validateTier(&tiers[len(tiers)-1], tier); err != nil {
		return 0, err
	}
	tiers = append(tiers, tier)
	if err := l.st.KVPut(tiersKey, tiers); err != nil {
		return 0, err
	}
	index := uint32(len(tiers) - 1)
	l.emit(events.LoyaltyTierAdded{Index: index, Name: tier.Name})
	return index, nil
}

func validateTier(prev *Tier, tier Tier) error {
	if strings.TrimSpace(tier.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidTier)
	}
	for _, bps := range []uint32{tier.DiscountBps, tier.CashbackBps, tier.StakingBoostBps} {
		if bps > bpsDenominator {
			return fmt.Errorf("%w: basis points %d exceed %d", ErrInvalidTier, bps, bpsDenominator)
		}
	}
	if prev == nil {
		return nil
	}
	if tier.MinPoints < prev.MinPoints || tier.MinSpendCents < prev.MinSpendCents {
		return fmt.Errorf("%w: thresholds below tier %q", ErrInvalidTier, prev.Name)
	}
	return nil
}

// qualifyingTier returns the highest tier whose point and spend thresholds
// are both met.
func qualifyingTier(tiers []Tier, rec Customer) uint32 {
	var best uint32
	for i, tier := range tiers {
		if rec.LoyaltyPoints >= tier.MinPoints && rec.TotalSpentCents >= tier.MinSpendCents {
			best = uint32(i)
		}
	}
	return best
}

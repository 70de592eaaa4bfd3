package loyalty

import (
	"errors"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
	"shopchain/native/referral"
)

// RecordPurchase accrues spend and points for customer and returns the
// cashback owed in USD cents. Only the marketplace may record purchases.
//
// On the customer's first purchase a non-zero referrer other than the
// customer is registered in the referral graph, unless the customer already
// has a referrer there or the edge would close a cycle. The direct referrer, wherever the edge came from,
// earns ReferralBonusPct of the points. Cashback uses the tier reached after
// this purchase. Every write is rolled back if any step fails.
func (l *Ledger) RecordPurchase(caller, customer ethcommon.Address, amountCents uint64, referrer ethcommon.Address) (res PurchaseResult, err error) {
	if err := common.Authorize(l.st, common.RoleMarket, caller); err != nil {
		return PurchaseResult{}, err
	}
	if err := common.Guard(l.pauses, ModuleName); err != nil {
		return PurchaseResult{}, err
	}
	if customer == (ethcommon.Address{}) {
		return PurchaseResult{}, ErrInvalidCustomer
	}
	if amountCents == 0 {
		return PurchaseResult{}, ErrInvalidAmount
	}

	cp := l.st.Checkpoint()
	defer func() {
		if err != nil {
			l.st.RevertTo(cp)
		}
	}()

	tiers, err := l.Tiers()
	if err != nil {
		return PurchaseResult{}, err
	}
	rec, exists, err := l.loadCustomer(customer)
	if err != nil {
		return PurchaseResult{}, err
	}
	now := uint64(l.now().Unix())
	first := rec.PurchaseCount == 0

	if first && referrer != (ethcommon.Address{}) && referrer != customer {
		if _, has, err := l.graph.ReferrerOf(customer); err != nil {
			return PurchaseResult{}, err
		} else if !has {
			// A referrer that already descends from the customer is ignored
			// rather than blocking the purchase.
			if err := l.graph.RegisterEdge(customer, referrer); err != nil && !errors.Is(err, referral.ErrReferralCycle) {
				return PurchaseResult{}, err
			}
		}
	}
	if !exists {
		rec = Customer{JoinedAt: now}
	}
	if rec.BadgeSerial == 0 {
		if err := l.issueBadge(customer, &rec); err != nil {
			return PurchaseResult{}, err
		}
	}

	points := amountCents * PointsPerCent
	if rec.TotalSpentCents, err = addUint64(rec.TotalSpentCents, amountCents, "totalSpent"); err != nil {
		return PurchaseResult{}, err
	}
	if rec.LoyaltyPoints, err = addUint64(rec.LoyaltyPoints, points, "loyaltyPoints"); err != nil {
		return PurchaseResult{}, err
	}
	rec.PurchaseCount++
	rec.LastPurchaseAt = now
	res = PurchaseResult{PointsEarned: points, TierBefore: rec.Tier}

	upstream, has, err := l.graph.ReferrerOf(customer)
	if err != nil {
		return PurchaseResult{}, err
	}
	if has {
		bonus := points * ReferralBonusPct / 100
		if bonus > 0 {
			if err := l.creditReferrer(upstream, customer, bonus, now); err != nil {
				return PurchaseResult{}, err
			}
		}
		res.Referrer = upstream
		res.BonusPoints = bonus
	}

	if next := qualifyingTier(tiers, rec); next > rec.Tier {
		from := rec.Tier
		rec.Tier = next
		if err := l.issueBadge(customer, &rec); err != nil {
			return PurchaseResult{}, err
		}
		l.emit(events.LoyaltyTierUpgraded{Customer: customer, From: from, To: next, Name: tiers[next].Name})
	}
	res.TierAfter = rec.Tier

	res.CashbackCents = mulDivBps(amountCents, tiers[rec.Tier].CashbackBps)
	if rec.CashbackCents, err = addUint64(rec.CashbackCents, res.CashbackCents, "cashback"); err != nil {
		return PurchaseResult{}, err
	}
	if err := l.storeCustomer(customer, rec); err != nil {
		return PurchaseResult{}, err
	}
	l.emit(events.LoyaltyPointsEarned{
		Customer:      customer,
		Points:        points,
		SpendCents:    amountCents,
		TotalPoints:   rec.LoyaltyPoints,
		CashbackCents: res.CashbackCents,
	})
	return res, nil
}

func (l *Ledger) creditReferrer(referrer, customer ethcommon.Address, bonus, now uint64) error {
	rec, exists, err := l.loadCustomer(referrer)
	if err != nil {
		return err
	}
	if !exists {
		rec = Customer{JoinedAt: now}
	}
	if rec.ReferralPoints, err = addUint64(rec.ReferralPoints, bonus, "referralPoints"); err != nil {
		return err
	}
	if rec.LoyaltyPoints, err = addUint64(rec.LoyaltyPoints, bonus, "loyaltyPoints"); err != nil {
		return err
	}
	if err := l.storeCustomer(referrer, rec); err != nil {
		return err
	}
	l.emit(events.LoyaltyReferralBonus{Referrer: referrer, Customer: customer, Points: bonus})
	return nil
}

// RedeemPoints burns points from the customer's balance and returns the
// discount they buy, in basis points.
func (l *Ledger) RedeemPoints(customer ethcommon.Address, points uint64) (uint64, error) {
	if err := common.Guard(l.pauses, ModuleName); err != nil {
		return 0, err
	}
	if customer == (ethcommon.Address{}) {
		return 0, ErrInvalidCustomer
	}
	if points == 0 {
		return 0, ErrInvalidAmount
	}
	rec, _, err := l.loadCustomer(customer)
	if err != nil {
		return 0, err
	}
	if points > rec.LoyaltyPoints {
		return 0, common.WithParams(ErrInsufficientPoints,
			"requested", strconv.FormatUint(points, 10), "available", strconv.FormatUint(rec.LoyaltyPoints, 10))
	}
	discount := points / PointsPerDiscountBps
	if discount > MaxDiscountBps {
		return 0, common.WithParams(ErrDiscountCapExceeded,
			"discountBps", strconv.FormatUint(discount, 10), "maxBps", strconv.Itoa(MaxDiscountBps))
	}
	rec.LoyaltyPoints -= points
	if rec.DiscountSaved, err = addUint64(rec.DiscountSaved, discount, "discountSaved"); err != nil {
		return 0, err
	}
	if err := l.storeCustomer(customer, rec); err != nil {
		return 0, err
	}
	l.emit(events.LoyaltyPointsRedeemed{Customer: customer, Points: points, DiscountBps: discount})
	return discount, nil
}

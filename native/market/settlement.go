package market

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
	"shopchain/native/loyalty"
	"shopchain/native/referral"
)

// PayOrder settles a placed order. Stock is taken, the order total is charged
// in tokens at the current oracle price, the purchase is recorded with the
// loyalty ledger, cashback is paid from the rewards pool and referral
// commissions are distributed. Either every step succeeds or none of them
// leaves a trace.
func (m *Market) PayOrder(caller ethcommon.Address, id uint64) (settlement Settlement, err error) {
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return Settlement{}, err
	}
	order, err := m.Order(id)
	if err != nil {
		return Settlement{}, err
	}
	if caller != order.Customer {
		return Settlement{}, common.WithParams(ErrNotOrderOwner, "orderId", u64(id), "caller", caller.Hex())
	}
	switch order.Status {
	case OrderPaid, OrderFulfilled, OrderRefunded:
		return Settlement{}, common.WithParams(ErrAlreadyPaid, "orderId", u64(id), "status", order.Status.String())
	case OrderCancelled:
		return Settlement{}, common.WithParams(ErrOrderCancelled, "orderId", u64(id))
	}

	cp := m.st.Checkpoint()
	defer func() {
		if err != nil {
			m.st.RevertTo(cp)
		}
	}()

	for _, item := range order.Items {
		if err := m.decrementStock(item.ProductID, item.Quantity); err != nil {
			return Settlement{}, err
		}
	}

	quote, err := m.prices.Quote(m.decimals)
	if err != nil {
		return Settlement{}, err
	}
	tokens, err := quote.USDCentsToTokens(order.TotalCents)
	if err != nil {
		return Settlement{}, err
	}
	fee := big.NewInt(0)
	if tokens.Sign() > 0 {
		res, err := m.ledger.Transfer(order.Customer, m.accounts.FeeRecipient, tokens)
		if err != nil {
			return Settlement{}, fmt.Errorf("market: capture payment: %w", err)
		}
		fee = res.Fee
	}

	// A fully discounted order moves no value, so it earns no points,
	// cashback or commission.
	var (
		purchase loyalty.PurchaseResult
		payout   referral.Payout
	)
	cashback := big.NewInt(0)
	if order.TotalCents > 0 {
		if purchase, err = m.loyalty.RecordPurchase(m.accounts.Self, order.Customer, order.TotalCents, order.Referrer); err != nil {
			return Settlement{}, err
		}
	}
	if purchase.CashbackCents > 0 {
		if cashback, err = quote.USDCentsToTokens(purchase.CashbackCents); err != nil {
			return Settlement{}, err
		}
		if cashback.Sign() > 0 {
			if _, err := m.ledger.Transfer(m.accounts.RewardsPool, order.Customer, cashback); err != nil {
				return Settlement{}, fmt.Errorf("market: pay cashback: %w", err)
			}
		}
		m.emit(events.MarketCashbackIssued{OrderID: id, Customer: order.Customer, Cents: purchase.CashbackCents, Tokens: cashback})
	}

	if order.TotalCents > 0 {
		if payout, err = m.referral.DistributeRewards(order.Customer, order.TotalCents, quote); err != nil {
			return Settlement{}, err
		}
	}

	now := m.now()
	order.Status = OrderPaid
	order.PaidAt = now
	order.UpdatedAt = now
	order.PaidTokens = tokens
	order.Price = new(big.Int).Set(quote.Price)
	order.CashbackCents = purchase.CashbackCents
	order.ReferralCents = payout.TotalCents
	if err := m.putOrder(order); err != nil {
		return Settlement{}, err
	}
	m.emit(events.MarketOrderPaid{
		ID:            id,
		Customer:      order.Customer,
		TotalCents:    order.TotalCents,
		Tokens:        tokens,
		Price:         order.Price,
		CashbackCents: purchase.CashbackCents,
		ReferralCents: payout.TotalCents,
	})
	referralTokens := payout.TotalTokens
	if referralTokens == nil {
		referralTokens = big.NewInt(0)
	}
	return Settlement{
		Order:          order,
		Tokens:         tokens,
		Fee:            fee,
		CashbackTokens: cashback,
		ReferralTokens: referralTokens,
		TierUpgraded:   purchase.Upgraded(),
	}, nil
}

// RefundOrder returns the paid tokens of an unshipped order to the customer
// and puts its items back in stock. Loyalty accrual, cashback and referral
// commissions already paid are kept.
func (m *Market) RefundOrder(caller ethcommon.Address, id uint64) (order Order, err error) {
	if err := m.authorizeAdmin(caller); err != nil {
		return Order{}, err
	}
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return Order{}, err
	}
	order, err = m.Order(id)
	if err != nil {
		return Order{}, err
	}
	if order.Status != OrderPaid {
		return Order{}, transitionError(order, OrderRefunded)
	}

	cp := m.st.Checkpoint()
	defer func() {
		if err != nil {
			m.st.RevertTo(cp)
		}
	}()

	for _, item := range order.Items {
		if err := m.restock(item.ProductID, item.Quantity); err != nil {
			return Order{}, err
		}
	}
	if order.PaidTokens != nil && order.PaidTokens.Sign() > 0 {
		if _, err := m.ledger.Transfer(m.accounts.FeeRecipient, order.Customer, order.PaidTokens); err != nil {
			return Order{}, fmt.Errorf("market: refund payment: %w", err)
		}
	}
	return m.transition(order, OrderRefunded, caller)
}

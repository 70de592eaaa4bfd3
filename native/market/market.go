package market

import (
	"math/big"
	"math/bits"
	"strconv"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/pricing"
	"shopchain/core/state"
	"shopchain/core/types"
	"shopchain/native/common"
	"shopchain/native/loyalty"
	"shopchain/native/referral"
	"shopchain/native/token"
)

// ModuleName identifies the marketplace in pause flags and logs.
const ModuleName = "market"

type marketState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	HasRole(role string, addr []byte) bool
	AppendEvent(*types.Event)
	Checkpoint() state.Checkpoint
	RevertTo(state.Checkpoint)
}

// TokenLedger moves tokens between accounts.
type TokenLedger interface {
	Transfer(from, to ethcommon.Address, amount *big.Int) (*token.TransferResult, error)
}

// PriceSource supplies the token/USD price used to settle an order.
type PriceSource interface {
	Quote(decimals uint8) (pricing.Quote, error)
}

// LoyaltyRecorder accrues points and computes cashback for a purchase.
type LoyaltyRecorder interface {
	RecordPurchase(caller, customer ethcommon.Address, amountCents uint64, referrer ethcommon.Address) (loyalty.PurchaseResult, error)
}

// ReferralDistributor pays upstream commissions for a purchase.
type ReferralDistributor interface {
	DistributeRewards(customer ethcommon.Address, purchaseCents uint64, conv referral.Converter) (referral.Payout, error)
}

// Accounts names the module accounts the marketplace settles against.
type Accounts struct {
	// Self is the marketplace's own identity. It must hold the market role
	// so that loyalty accepts its purchase records.
	Self ethcommon.Address
	// FeeRecipient receives order payments.
	FeeRecipient ethcommon.Address
	// RewardsPool funds cashback.
	RewardsPool ethcommon.Address
}

// Market is the order settlement orchestrator. It owns the catalog, carts,
// discount codes and orders and coordinates the token ledger, loyalty ledger
// and referral graph when an order is paid.
type Market struct {
	st       marketState
	ledger   TokenLedger
	prices   PriceSource
	loyalty  LoyaltyRecorder
	referral ReferralDistributor
	accounts Accounts
	pauses   common.PauseView
	decimals uint8
	nowFn    func() time.Time
}

// New wires a marketplace over its collaborators.
func New(st marketState, ledger TokenLedger, prices PriceSource, loyalty LoyaltyRecorder, referral ReferralDistributor, accounts Accounts) *Market {
	return &Market{
		st:       st,
		ledger:   ledger,
		prices:   prices,
		loyalty:  loyalty,
		referral: referral,
		accounts: accounts,
		decimals: token.Decimals,
		nowFn:    time.Now,
	}
}

func (m *Market) SetPauses(p common.PauseView) {
	if m == nil {
		return
	}
	m.pauses = p
}

// SetNowFunc overrides the clock used for timestamps and discount windows.
func (m *Market) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	m.nowFn = now
}

// Accounts returns the configured module accounts.
func (m *Market) Accounts() Accounts { return m.accounts }

func (m *Market) now() uint64 {
	if m.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(m.nowFn().Unix())
}

func (m *Market) emit(evt interface{ Event() *types.Event }) {
	m.st.AppendEvent(evt.Event())
}

func (m *Market) authorizeAdmin(caller ethcommon.Address) error {
	return common.Authorize(m.st, common.RoleMarketAdmin, caller)
}

// nextID increments and returns the counter stored under key.
func (m *Market) nextID(key []byte) (uint64, error) {
	var id uint64
	if _, err := m.st.KVGet(key, &id); err != nil {
		return 0, err
	}
	id++
	if err := m.st.KVPut(key, id); err != nil {
		return 0, err
	}
	return id, nil
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func parseUint(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

func mulUint64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, common.WithParams(ErrInvalidQuantity, "value", u64(a), "multiplier", u64(b))
	}
	return lo, nil
}

package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"shopchain/core/types"
)

const (
	// TypeTokenTransfer is emitted for every balance movement between accounts.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenMint is emitted when new supply is created.
	TypeTokenMint = "token.mint"
	// TypeTokenBurn is emitted when a holder destroys part of its balance.
	TypeTokenBurn = "token.burn"
	// TypeTokenFeesDistributed is emitted when a transfer fee is split between
	// the treasury, liquidity and marketing recipients.
	TypeTokenFeesDistributed = "token.fees.distributed"
	// TypeTokenFeesUpdated is emitted when the fee policy changes.
	TypeTokenFeesUpdated = "token.fees.updated"
	// TypeTokenTradingEnabled is emitted once, when the trading gate opens.
	TypeTokenTradingEnabled = "token.trading.enabled"
	TypeTokenPaused         = "token.paused"
	TypeTokenUnpaused       = "token.unpaused"
	// TypeTokenSnapshot is emitted for each new balance snapshot.
	TypeTokenSnapshot = "token.snapshot"
	// TypeTokenConfigUpdated is emitted for administrative changes to the
	// exclusion list, AMM pairs, transfer cap or fee recipients.
	TypeTokenConfigUpdated = "token.config.updated"
)

type TokenTransfer struct {
	From     common.Address
	To       common.Address
	Amount   *big.Int
	Fee      *big.Int
	Received *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"from":     formatAddress(e.From),
		"to":       formatAddress(e.To),
		"amount":   formatAmount(e.Amount),
		"fee":      formatAmount(e.Fee),
		"received": formatAmount(e.Received),
	}}
}

type TokenMint struct {
	To     common.Address
	Amount *big.Int
	Supply *big.Int
}

func (TokenMint) EventType() string { return TypeTokenMint }

func (e TokenMint) Event() *types.Event {
	return &types.Event{Type: TypeTokenMint, Attributes: map[string]string{
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
		"supply": formatAmount(e.Supply),
	}}
}

type TokenBurn struct {
	From   common.Address
	Amount *big.Int
	Supply *big.Int
}

func (TokenBurn) EventType() string { return TypeTokenBurn }

func (e TokenBurn) Event() *types.Event {
	return &types.Event{Type: TypeTokenBurn, Attributes: map[string]string{
		"from":   formatAddress(e.From),
		"amount": formatAmount(e.Amount),
		"supply": formatAmount(e.Supply),
	}}
}

// TokenFeesDistributed records how a single transfer fee was split.
type TokenFeesDistributed struct {
	Payer     common.Address
	Kind      string
	Fee       *big.Int
	Treasury  *big.Int
	Liquidity *big.Int
	Marketing *big.Int
}

func (TokenFeesDistributed) EventType() string { return TypeTokenFeesDistributed }

func (e TokenFeesDistributed) Event() *types.Event {
	return &types.Event{Type: TypeTokenFeesDistributed, Attributes: map[string]string{
		"payer":     formatAddress(e.Payer),
		"kind":      e.Kind,
		"fee":       formatAmount(e.Fee),
		"treasury":  formatAmount(e.Treasury),
		"liquidity": formatAmount(e.Liquidity),
		"marketing": formatAmount(e.Marketing),
	}}
}

type TokenFeesUpdated struct {
	BuyBps      uint32
	SellBps     uint32
	TransferBps uint32
	Version     uint64
}

func (TokenFeesUpdated) EventType() string { return TypeTokenFeesUpdated }

func (e TokenFeesUpdated) Event() *types.Event {
	return &types.Event{Type: TypeTokenFeesUpdated, Attributes: map[string]string{
		"buyBps":      strconv.FormatUint(uint64(e.BuyBps), 10),
		"sellBps":     strconv.FormatUint(uint64(e.SellBps), 10),
		"transferBps": strconv.FormatUint(uint64(e.TransferBps), 10),
		"version":     formatUint(e.Version),
	}}
}

type TokenTradingEnabled struct {
	By common.Address
	At int64
}

func (TokenTradingEnabled) EventType() string { return TypeTokenTradingEnabled }

func (e TokenTradingEnabled) Event() *types.Event {
	return &types.Event{Type: TypeTokenTradingEnabled, Attributes: map[string]string{
		"by": formatAddress(e.By),
		"at": strconv.FormatInt(e.At, 10),
	}}
}

// TokenPauseChanged reports pause and unpause transitions.
type TokenPauseChanged struct {
	Paused bool
	By     common.Address
}

func (e TokenPauseChanged) EventType() string {
	if e.Paused {
		return TypeTokenPaused
	}
	return TypeTokenUnpaused
}

func (e TokenPauseChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"by": formatAddress(e.By),
	}}
}

type TokenSnapshot struct {
	ID uint64
}

func (TokenSnapshot) EventType() string { return TypeTokenSnapshot }

func (e TokenSnapshot) Event() *types.Event {
	return &types.Event{Type: TypeTokenSnapshot, Attributes: map[string]string{
		"id": formatUint(e.ID),
	}}
}

type TokenConfigUpdated struct {
	Field   string
	Account common.Address
	Value   string
	Version uint64
}

func (TokenConfigUpdated) EventType() string { return TypeTokenConfigUpdated }

func (e TokenConfigUpdated) Event() *types.Event {
	attrs := map[string]string{
		"field":   e.Field,
		"value":   e.Value,
		"version": formatUint(e.Version),
	}
	if e.Account != (common.Address{}) {
		attrs["account"] = formatAddress(e.Account)
	}
	return &types.Event{Type: TypeTokenConfigUpdated, Attributes: attrs}
}

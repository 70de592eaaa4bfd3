package token

import (
	"bytes"
	"math/big"
	"sort"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
	"shopchain/native/fees"
)

// TransferResult reports how a transfer was priced.
type TransferResult struct {
	Kind         string
	Fee          *big.Int
	Received     *big.Int
	Distribution fees.Distribution
}

// Transfer moves amount from one account to another. Unless either side is
// excluded, the trading gate and the per-transfer cap apply and a fee is
// deducted from the amount and split between the fee recipients. All balance
// changes of a transfer are written together or not at all.
func (l *Ledger) Transfer(from, to ethcommon.Address, amount *big.Int) (*TransferResult, error) {
	if err := common.Guard(l.pauses, ModuleName); err != nil {
		return nil, err
	}
	zero := ethcommon.Address{}
	if from == zero || to == zero {
		return nil, ErrInvalidRecipient
	}
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	cfg, err := l.Config()
	if err != nil {
		return nil, err
	}
	fromExcluded, err := l.IsExcluded(from)
	if err != nil {
		return nil, err
	}
	toExcluded, err := l.IsExcluded(to)
	if err != nil {
		return nil, err
	}
	if !fromExcluded && !toExcluded {
		if !cfg.TradingEnabled {
			return nil, ErrTradingNotEnabled
		}
		if limit := cfg.MaxTransferAmount; limit != nil && limit.Sign() > 0 && amount.Cmp(limit) > 0 {
			return nil, common.WithParams(ErrTransferCapExceeded, "amount", amount.String(), "max", limit.String())
		}
	}
	balance, err := l.BalanceOf(from)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, common.WithParams(ErrInsufficientBalance,
			"account", from.Hex(), "required", amount.String(), "available", balance.String())
	}

	fromPair, err := l.IsAMMPair(from)
	if err != nil {
		return nil, err
	}
	toPair, err := l.IsAMMPair(to)
	if err != nil {
		return nil, err
	}
	policy, err := l.FeePolicy()
	if err != nil {
		return nil, err
	}
	priced := fees.Apply(fees.ApplyInput{
		Kind:   fees.Classify(fromExcluded, toExcluded, fromPair, toPair),
		Gross:  amount,
		Policy: policy,
	})
	split := fees.Split(priced.Fee)

	// The fee is credited straight to the recipients; routing it through a
	// collector account would net to zero inside the same delta set.
	deltas := newDeltaSet()
	deltas.add(from, new(big.Int).Neg(amount))
	deltas.add(to, priced.Net)
	deltas.add(cfg.Recipients.Treasury, split.Treasury)
	deltas.add(cfg.Recipients.Liquidity, split.Liquidity)
	deltas.add(cfg.Recipients.Marketing, split.Marketing)
	if err := l.applyDeltas(deltas); err != nil {
		return nil, err
	}

	l.emit(events.TokenTransfer{From: from, To: to, Amount: amount, Fee: priced.Fee, Received: priced.Net})
	if priced.Fee.Sign() > 0 {
		l.emit(events.TokenFeesDistributed{
			Payer:     from,
			Kind:      priced.Kind,
			Fee:       priced.Fee,
			Treasury:  split.Treasury,
			Liquidity: split.Liquidity,
			Marketing: split.Marketing,
		})
	}
	return &TransferResult{Kind: priced.Kind, Fee: priced.Fee, Received: priced.Net, Distribution: split}, nil
}

// Mint creates amount new tokens for to. The caller needs the minter role.
func (l *Ledger) Mint(caller, to ethcommon.Address, amount *big.Int) error {
	if err := common.Authorize(l.st, common.RoleMinter, caller); err != nil {
		return err
	}
	if err := common.Guard(l.pauses, ModuleName); err != nil {
		return err
	}
	if to == (ethcommon.Address{}) {
		return ErrInvalidRecipient
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	cfg, err := l.Config()
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(supply, amount)
	if next.Cmp(cfg.MaxSupply) > 0 {
		return common.WithParams(ErrSupplyCapExceeded,
			"requested", amount.String(), "supply", supply.String(), "max", cfg.MaxSupply.String())
	}
	if err := l.setSupply(supply, next); err != nil {
		return err
	}
	deltas := newDeltaSet()
	deltas.add(to, amount)
	if err := l.applyDeltas(deltas); err != nil {
		return err
	}
	l.emit(events.TokenMint{To: to, Amount: amount, Supply: next})
	return nil
}

// Burn destroys amount tokens held by holder.
func (l *Ledger) Burn(holder ethcommon.Address, amount *big.Int) error {
	if err := common.Guard(l.pauses, ModuleName); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	balance, err := l.BalanceOf(holder)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return common.WithParams(ErrInsufficientBalance,
			"account", holder.Hex(), "required", amount.String(), "available", balance.String())
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	next := new(big.Int).Sub(supply, amount)
	if err := l.setSupply(supply, next); err != nil {
		return err
	}
	deltas := newDeltaSet()
	deltas.add(holder, new(big.Int).Neg(amount))
	if err := l.applyDeltas(deltas); err != nil {
		return err
	}
	l.emit(events.TokenBurn{From: holder, Amount: amount, Supply: next})
	return nil
}

func (l *Ledger) setSupply(before, after *big.Int) error {
	if err := l.recordCheckpoint(supplyCheckpoints, before); err != nil {
		return err
	}
	return l.storeAmount(supplyKey, after)
}

// deltaSet aggregates signed balance changes per account.
type deltaSet map[ethcommon.Address]*big.Int

func newDeltaSet() deltaSet { return make(deltaSet) }

func (d deltaSet) add(addr ethcommon.Address, delta *big.Int) {
	if delta == nil || delta.Sign() == 0 {
		return
	}
	if cur, ok := d[addr]; ok {
		cur.Add(cur, delta)
		return
	}
	d[addr] = new(big.Int).Set(delta)
}

func (d deltaSet) sorted() []ethcommon.Address {
	out := make([]ethcommon.Address, 0, len(d))
	for addr := range d {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// applyDeltas validates every resulting balance before writing any of them.
func (l *Ledger) applyDeltas(d deltaSet) error {
	addrs := d.sorted()
	before := make([]*big.Int, len(addrs))
	after := make([]*big.Int, len(addrs))
	for i, addr := range addrs {
		balance, err := l.BalanceOf(addr)
		if err != nil {
			return err
		}
		next := new(big.Int).Add(balance, d[addr])
		if next.Sign() < 0 {
			required := new(big.Int).Neg(d[addr])
			return common.WithParams(ErrInsufficientBalance,
				"account", addr.Hex(), "required", required.String(), "available", balance.String())
		}
		before[i], after[i] = balance, next
	}
	for i, addr := range addrs {
		if err := l.recordCheckpoint(accountKey(checkpointPrefix, addr), before[i]); err != nil {
			return err
		}
		if err := l.storeAmount(accountKey(balancePrefix, addr), after[i]); err != nil {
			return err
		}
	}
	return nil
}

package token

import (
	"math/big"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
	"shopchain/native/fees"
)

// EnableTrading opens the trading gate. The gate cannot be closed again.
func (l *Ledger) EnableTrading(caller ethcommon.Address) error {
	if err := common.Authorize(l.st, common.RoleAdmin, caller); err != nil {
		return err
	}
	cfg, err := l.Config()
	if err != nil {
		return err
	}
	if cfg.TradingEnabled {
		return ErrAlreadyEnabled
	}
	at := l.now().Unix()
	cfg.TradingEnabled = true
	cfg.TradingEnabledAt = uint64(at)
	cfg.Version++
	if err := l.st.KVPut(configKey, cfg); err != nil {
		return err
	}
	l.emit(events.TokenTradingEnabled{By: caller, At: at})
	return nil
}

// Pause halts transfers, mints and burns.
func (l *Ledger) Pause(caller ethcommon.Address) error {
	return l.setPaused(caller, true)
}

// Unpause resumes balance movements.
func (l *Ledger) Unpause(caller ethcommon.Address) error {
	return l.setPaused(caller, false)
}

func (l *Ledger) setPaused(caller ethcommon.Address, paused bool) error {
	if err := common.Authorize(l.st, common.RolePauser, caller); err != nil {
		return err
	}
	if l.Paused() == paused {
		if paused {
			return ErrAlreadyPaused
		}
		return ErrNotPaused
	}
	if err := l.pauses.SetPaused(ModuleName, paused); err != nil {
		return err
	}
	l.emit(events.TokenPauseChanged{Paused: paused, By: caller})
	return nil
}

// SetFeePolicy replaces the fee rates. The stored version is bumped
// regardless of the version carried by policy.
func (l *Ledger) SetFeePolicy(caller ethcommon.Address, policy fees.Policy) (fees.Policy, error) {
	if err := common.Authorize(l.st, common.RoleAdmin, caller); err != nil {
		return fees.Policy{}, err
	}
	if err := policy.Validate(); err != nil {
		return fees.Policy{}, err
	}
	current, err := l.FeePolicy()
	if err != nil {
		return fees.Policy{}, err
	}
	policy.Version = current.Version + 1
	if err := l.st.KVPut(policyKey, policy); err != nil {
		return fees.Policy{}, err
	}
	l.emit(events.TokenFeesUpdated{
		BuyBps:      policy.BuyBps,
		SellBps:     policy.SellBps,
		TransferBps: policy.TransferBps,
		Version:     policy.Version,
	})
	return policy, nil
}

// SetExcluded adds or removes addr from the fee and trading gate exemption
// list.
func (l *Ledger) SetExcluded(caller, addr ethcommon.Address, excluded bool) error {
	return l.setFlag(caller, "excluded", excludedPrefix, addr, excluded)
}

// SetAMMPair marks addr as an AMM pair so transfers from and to it pay the
// buy and sell rates.
func (l *Ledger) SetAMMPair(caller, pair ethcommon.Address, isPair bool) error {
	return l.setFlag(caller, "ammPair", pairPrefix, pair, isPair)
}

func (l *Ledger) setFlag(caller ethcommon.Address, field, prefix string, addr ethcommon.Address, value bool) error {
	if err := common.Authorize(l.st, common.RoleAdmin, caller); err != nil {
		return err
	}
	if addr == (ethcommon.Address{}) {
		return ErrInvalidRecipient
	}
	if err := l.st.KVPut(accountKey(prefix, addr), value); err != nil {
		return err
	}
	version, err := l.bumpVersion(nil)
	if err != nil {
		return err
	}
	l.emit(events.TokenConfigUpdated{Field: field, Account: addr, Value: strconv.FormatBool(value), Version: version})
	return nil
}

// SetMaxTransferAmount sets the per-transfer cap for non-excluded transfers.
// Zero removes the cap.
func (l *Ledger) SetMaxTransferAmount(caller ethcommon.Address, amount *big.Int) error {
	if err := common.Authorize(l.st, common.RoleAdmin, caller); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	version, err := l.bumpVersion(func(cfg *Config) error {
		cfg.MaxTransferAmount = new(big.Int).Set(amount)
		return nil
	})
	if err != nil {
		return err
	}
	l.emit(events.TokenConfigUpdated{Field: "maxTransferAmount", Value: amount.String(), Version: version})
	return nil
}

// SetFeeRecipients replaces the accounts receiving fee shares.
func (l *Ledger) SetFeeRecipients(caller ethcommon.Address, recipients Recipients) error {
	if err := common.Authorize(l.st, common.RoleAdmin, caller); err != nil {
		return err
	}
	if err := recipients.Validate(); err != nil {
		return err
	}
	version, err := l.bumpVersion(func(cfg *Config) error {
		cfg.Recipients = recipients
		return nil
	})
	if err != nil {
		return err
	}
	l.emit(events.TokenConfigUpdated{Field: "feeRecipients", Value: recipients.Treasury.Hex(), Version: version})
	return nil
}

func (l *Ledger) bumpVersion(mutate func(*Config) error) (uint64, error) {
	cfg, err := l.Config()
	if err != nil {
		return 0, err
	}
	if mutate != nil {
		if err := mutate(&cfg); err != nil {
			return 0, err
		}
	}
	cfg.Version++
	if err := l.st.KVPut(configKey, cfg); err != nil {
		return 0, err
	}
	return cfg.Version, nil
}

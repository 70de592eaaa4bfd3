package token

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"shopchain/core/state"
	"shopchain/core/types"
	"shopchain/native/common"
	"shopchain/native/fees"
)

// State is the subset of the state manager used by the ledger.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr []byte) bool
	AppendEvent(*types.Event)
	Checkpoint() state.Checkpoint
	RevertTo(state.Checkpoint)
}

var (
	configKey         = []byte("token/config")
	policyKey         = []byte("token/fees")
	supplyKey         = []byte("token/supply")
	snapshotKey       = []byte("token/snapshot/current")
	balancePrefix     = "token/balance/"
	excludedPrefix    = "token/excluded/"
	pairPrefix        = "token/pair/"
	checkpointPrefix  = "token/checkpoint/"
	supplyCheckpoints = []byte("token/checkpoint/supply")
)

func accountKey(prefix string, addr ethcommon.Address) []byte {
	return append([]byte(prefix), addr.Bytes()...)
}

// Ledger is the balance ledger of the marketplace token. It owns balances,
// supply, the fee policy and snapshot history.
type Ledger struct {
	st     State
	pauses *common.Pauses
	nowFn  func() time.Time
}

// NewLedger constructs a ledger over st.
func NewLedger(st State) *Ledger {
	return &Ledger{st: st, pauses: common.NewPauses(st), nowFn: time.Now}
}

// SetNowFunc overrides the clock used for timestamps. Primarily used in tests.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now == nil {
		l.nowFn = time.Now
		return
	}
	l.nowFn = now
}

// Pauses exposes the pause flags so other modules can share the view.
func (l *Ledger) Pauses() *common.Pauses { return l.pauses }

// Initialize stores the initial configuration and fee policy. It is a no-op
// when the ledger was already initialised.
func (l *Ledger) Initialize(cfg Config, policy fees.Policy) error {
	ok, err := l.st.KVGet(configKey, nil)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}
	cfg = cfg.Clone()
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if policy.Version == 0 {
		policy.Version = 1
	}
	if err := l.st.KVPut(configKey, cfg); err != nil {
		return err
	}
	return l.st.KVPut(policyKey, policy)
}

// Config returns the stored ledger configuration.
func (l *Ledger) Config() (Config, error) {
	var cfg Config
	ok, err := l.st.KVGet(configKey, &cfg)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, ErrNotInitialized
	}
	return cfg, nil
}

// FeePolicy returns the active fee policy.
func (l *Ledger) FeePolicy() (fees.Policy, error) {
	var policy fees.Policy
	ok, err := l.st.KVGet(policyKey, &policy)
	if err != nil {
		return fees.Policy{}, err
	}
	if !ok {
		return fees.Policy{}, ErrNotInitialized
	}
	return policy, nil
}

// BalanceOf returns the current balance of addr.
func (l *Ledger) BalanceOf(addr ethcommon.Address) (*big.Int, error) {
	return l.loadAmount(accountKey(balancePrefix, addr))
}

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return l.loadAmount(supplyKey)
}

// IsExcluded reports whether addr is exempt from fees and the trading gate.
func (l *Ledger) IsExcluded(addr ethcommon.Address) (bool, error) {
	return l.loadFlag(accountKey(excludedPrefix, addr))
}

// IsAMMPair reports whether addr is a registered AMM pair.
func (l *Ledger) IsAMMPair(addr ethcommon.Address) (bool, error) {
	return l.loadFlag(accountKey(pairPrefix, addr))
}

// Paused reports whether balance movements are currently halted.
func (l *Ledger) Paused() bool {
	return l.pauses.IsPaused(ModuleName)
}

func (l *Ledger) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := l.st.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (l *Ledger) loadFlag(key []byte) (bool, error) {
	var flag bool
	ok, err := l.st.KVGet(key, &flag)
	if err != nil {
		return false, err
	}
	return ok && flag, nil
}

func (l *Ledger) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("token: negative amount for key %q", key)
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrOverflow
	}
	return l.st.KVPut(key, amount)
}

func (l *Ledger) emit(evt interface{ Event() *types.Event }) {
	l.st.AppendEvent(evt.Event())
}

func (l *Ledger) now() time.Time {
	if l.nowFn == nil {
		return time.Now()
	}
	return l.nowFn()
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrOverflow
	}
	return nil
}

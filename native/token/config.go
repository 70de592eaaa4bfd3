package token

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ModuleName identifies the ledger in pause flags and logs.
const ModuleName = "token"

// Decimals is the number of fractional digits of one whole token.
const Decimals = 18

// Recipients receive the shares of every collected transfer fee.
type Recipients struct {
	Treasury  ethcommon.Address
	Liquidity ethcommon.Address
	Marketing ethcommon.Address
}

func (r Recipients) Validate() error {
	zero := ethcommon.Address{}
	if r.Treasury == zero || r.Liquidity == zero || r.Marketing == zero {
		return fmt.Errorf("%w: fee recipients must be set", ErrInvalidConfig)
	}
	return nil
}

// Config is the persisted ledger configuration. Version increases with every
// administrative change.
type Config struct {
	Name              string
	Symbol            string
	MaxSupply         *big.Int
	MaxTransferAmount *big.Int
	TradingEnabled    bool
	TradingEnabledAt  uint64
	Recipients        Recipients
	Version           uint64
}

// Clone returns a deep copy of the configuration.
func (c Config) Clone() Config {
	clone := c
	clone.MaxSupply = cloneBig(c.MaxSupply)
	clone.MaxTransferAmount = cloneBig(c.MaxTransferAmount)
	return clone
}

// Validate checks the static fields of the configuration.
func (c Config) Validate() error {
	if c.MaxSupply == nil || c.MaxSupply.Sign() <= 0 {
		return fmt.Errorf("%w: max supply must be positive", ErrInvalidConfig)
	}
	if _, overflow := uint256.FromBig(c.MaxSupply); overflow {
		return fmt.Errorf("%w: max supply exceeds 256 bits", ErrInvalidConfig)
	}
	if c.MaxTransferAmount != nil && c.MaxTransferAmount.Sign() < 0 {
		return fmt.Errorf("%w: max transfer amount must not be negative", ErrInvalidConfig)
	}
	return c.Recipients.Validate()
}

// WholeTokens converts an amount of whole tokens into base units.
func WholeTokens(n int64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	return unit.Mul(unit, big.NewInt(n))
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

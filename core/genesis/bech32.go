package genesis

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// AccountHRP is the human readable part of bech32 shop addresses.
const AccountHRP = "shop"

// ParseAccount accepts a 0x-prefixed hex address or a bech32 address with
// the shop prefix.
func ParseAccount(addr string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(addr)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !ethcommon.IsHexAddress(trimmed) {
			return ethcommon.Address{}, fmt.Errorf("decode hex account %q: malformed", addr)
		}
		return ethcommon.HexToAddress(trimmed), nil
	}
	hrp, data, err := bech32.Decode(trimmed)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("decode bech32 account: %w", err)
	}
	if hrp != AccountHRP {
		return ethcommon.Address{}, fmt.Errorf("decode bech32 account: unsupported hrp %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ethcommon.Address{}, fmt.Errorf("decode bech32 account: %w", err)
	}
	if len(decoded) != ethcommon.AddressLength {
		return ethcommon.Address{}, fmt.Errorf("decode bech32 account: invalid address length %d", len(decoded))
	}
	return ethcommon.BytesToAddress(decoded), nil
}

// FormatAccount renders addr in bech32 form.
func FormatAccount(addr ethcommon.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(AccountHRP, conv)
}

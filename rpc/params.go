package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/genesis"
)

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return invalidParams("parameter object required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams("invalid parameter object: " + err.Error())
	}
	return nil
}

func parseAddress(field, value string) (ethcommon.Address, error) {
	addr, err := genesis.ParseAccount(value)
	if err != nil {
		return ethcommon.Address{}, invalidParams(field + ": " + err.Error())
	}
	return addr, nil
}

// parseOptionalAddress returns the zero address for an empty value.
func parseOptionalAddress(field, value string) (ethcommon.Address, error) {
	if strings.TrimSpace(value) == "" {
		return ethcommon.Address{}, nil
	}
	return parseAddress(field, value)
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, invalidParams(field + ": invalid decimal amount")
	}
	return amount, nil
}

func formatAddress(addr ethcommon.Address) string {
	return addr.Hex()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type addressParams struct {
	Address string `json:"address"`
}

type idParams struct {
	ID uint64 `json:"id"`
}

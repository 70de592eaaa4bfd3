package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"shopchain/core/types"
)

const (
	// TypeOraclePriceUpdated is emitted whenever an updater pushes a new
	// token/USD price.
	TypeOraclePriceUpdated = "oracle.price.updated"
)

type OraclePriceUpdated struct {
	Price      *big.Int
	ObservedAt int64
	Updater    common.Address
}

func (OraclePriceUpdated) EventType() string { return TypeOraclePriceUpdated }

func (e OraclePriceUpdated) Event() *types.Event {
	return &types.Event{Type: TypeOraclePriceUpdated, Attributes: map[string]string{
		"price":      formatAmount(e.Price),
		"observedAt": strconv.FormatInt(e.ObservedAt, 10),
		"updater":    formatAddress(e.Updater),
	}}
}

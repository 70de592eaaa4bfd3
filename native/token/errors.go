package token

import (
	"errors"

	"shopchain/native/common"
)

var (
	// ErrPaused is returned by balance-moving operations while the ledger is
	// paused.
	ErrPaused              = common.ErrModulePaused
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrSupplyCapExceeded   = errors.New("token: supply cap exceeded")
	ErrTradingNotEnabled   = errors.New("token: trading not enabled")
	ErrTransferCapExceeded = errors.New("token: transfer cap exceeded")
	ErrAlreadyEnabled      = errors.New("token: trading already enabled")
	ErrAlreadyPaused       = errors.New("token: already paused")
	ErrNotPaused           = errors.New("token: not paused")
	ErrInvalidRecipient    = errors.New("token: invalid recipient")
	ErrInvalidAmount       = errors.New("token: invalid amount")
	ErrInvalidSnapshot     = errors.New("token: invalid snapshot id")
	ErrInvalidConfig       = errors.New("token: invalid config")
	ErrNotInitialized      = errors.New("token: ledger not initialised")
	ErrOverflow            = errors.New("token: amount overflows 256 bits")
)

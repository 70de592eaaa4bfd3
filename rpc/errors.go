package rpc

import (
	"errors"
	"net/http"

	"shopchain/core"
	"shopchain/core/pricing"
	"shopchain/native/airdrop"
	"shopchain/native/common"
	"shopchain/native/loyalty"
	"shopchain/native/fees"
	"shopchain/native/market"
	"shopchain/native/referral"
	"shopchain/native/token"
)

// paramError marks malformed request parameters.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func invalidParams(msg string) error { return &paramError{msg: msg} }

var errorCodes = []struct {
	err    error
	code   int
	status int
}{
	{common.ErrUnauthorized, codeUnauthorized, http.StatusForbidden},
	{common.ErrModulePaused, codeModulePaused, http.StatusServiceUnavailable},
	{core.ErrNotInitialized, codeNotInitialized, http.StatusServiceUnavailable},
	{market.ErrOrderNotFound, codeNotFound, http.StatusNotFound},
	{market.ErrProductNotFound, codeNotFound, http.StatusNotFound},
	{loyalty.ErrCustomerNotFound, codeNotFound, http.StatusNotFound},
	{token.ErrInsufficientBalance, codeInsufficient, http.StatusOK},
	{loyalty.ErrInsufficientPoints, codeInsufficient, http.StatusOK},
	{market.ErrInsufficientStock, codeInsufficient, http.StatusOK},
	{airdrop.ErrCampaignExhausted, codeInsufficient, http.StatusOK},
	{pricing.ErrInvalidPrice, codePriceUnavailable, http.StatusOK},
	{pricing.ErrStalePrice, codePriceUnavailable, http.StatusOK},
}

// toRPCError maps a ledger error to a stable code. The structured parameters
// of the error, plus its sentinel message under "error", become error.data.
func toRPCError(err error) (int, *RPCError) {
	var pe *paramError
	if errors.As(err, &pe) {
		return http.StatusBadRequest, &RPCError{Code: codeInvalidParams, Message: pe.msg}
	}
	data := map[string]string{}
	for k, v := range common.Params(err) {
		data[k] = v
	}
	var detail *common.DetailError
	if errors.As(err, &detail) {
		data["error"] = detail.Err.Error()
	}
	var payload interface{}
	if len(data) > 0 {
		payload = data
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.status, &RPCError{Code: entry.code, Message: err.Error(), Data: payload}
		}
	}
	if detail != nil || isDomainError(err) {
		return http.StatusOK, &RPCError{Code: codeRejected, Message: err.Error(), Data: payload}
	}
	return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal error"}
}

var domainErrors = []error{
	token.ErrSupplyCapExceeded, token.ErrTradingNotEnabled, token.ErrTransferCapExceeded,
	token.ErrAlreadyEnabled, token.ErrAlreadyPaused, token.ErrNotPaused, token.ErrInvalidRecipient,
	token.ErrInvalidAmount, token.ErrInvalidSnapshot, token.ErrInvalidConfig, token.ErrOverflow,
	loyalty.ErrDiscountCapExceeded, loyalty.ErrInvalidCustomer, loyalty.ErrInvalidAmount,
	loyalty.ErrInvalidTier, loyalty.ErrOverflow,
	market.ErrNotOrderOwner, market.ErrAlreadyPaid, market.ErrOrderCancelled, market.ErrInvalidTransition,
	market.ErrInvalidDiscountCode, market.ErrDiscountExists, market.ErrProductInactive,
	market.ErrInvalidProduct, market.ErrInvalidQuantity, market.ErrEmptyCart, market.ErrInvalidCustomer,
	referral.ErrAlreadyReferred, referral.ErrSelfReferral, referral.ErrInvalidReferrer,
	referral.ErrReferralCycle, referral.ErrInvalidLevels, fees.ErrFeeTooHigh,
	airdrop.ErrInvalidCampaignOrSource, airdrop.ErrAlreadyClaimed, airdrop.ErrInvalidProof, airdrop.ErrInvalidAmount,
	core.ErrUnknownModule, core.ErrUnknownRole,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

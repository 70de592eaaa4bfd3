package common

import (
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	RoleAdmin         = "ROLE_ADMIN"
	RoleMinter        = "ROLE_MINTER"
	RolePauser        = "ROLE_PAUSER"
	RoleOracle        = "ROLE_ORACLE"
	RoleLoyaltyAdmin  = "ROLE_LOYALTY_ADMIN"
	RoleReferralAdmin = "ROLE_REFERRAL_ADMIN"
	RoleMarketAdmin   = "ROLE_MARKET_ADMIN"
	RoleAirdropAdmin  = "ROLE_AIRDROP_ADMIN"
	// RoleMarket is held by the settlement orchestrator itself. Loyalty
	// accrual only accepts purchases recorded by this role.
	RoleMarket = "ROLE_MARKET"
)

// Roles lists every role the ledger checks.
var Roles = []string{
	RoleAdmin,
	RoleMinter,
	RolePauser,
	RoleOracle,
	RoleLoyaltyAdmin,
	RoleReferralAdmin,
	RoleMarketAdmin,
	RoleAirdropAdmin,
	RoleMarket,
}

// IsRole reports whether role is one of Roles.
func IsRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ErrUnauthorized is returned when the caller lacks the role required by an
// operation.
var ErrUnauthorized = errors.New("unauthorized")

// RoleView exposes role membership checks.
type RoleView interface {
	HasRole(role string, addr []byte) bool
}

// Authorize fails unless caller holds role. Callers run it before reading any
// other state so that unauthorized requests learn nothing about validation.
func Authorize(roles RoleView, role string, caller ethcommon.Address) error {
	if roles != nil && caller != (ethcommon.Address{}) && roles.HasRole(role, caller.Bytes()) {
		return nil
	}
	return WithParams(ErrUnauthorized, "role", role, "caller", caller.Hex())
}

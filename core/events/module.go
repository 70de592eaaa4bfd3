package events

import (
	"github.com/ethereum/go-ethereum/common"

	"shopchain/core/types"
)

const (
	TypeModulePaused   = "module.paused"
	TypeModuleUnpaused = "module.unpaused"
)

// ModulePauseChanged reports a pause flag flip on a module other than the
// token ledger.
type ModulePauseChanged struct {
	Module string
	Paused bool
	By     common.Address
}

func (e ModulePauseChanged) EventType() string {
	if e.Paused {
		return TypeModulePaused
	}
	return TypeModuleUnpaused
}

func (e ModulePauseChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"module": e.Module,
		"by":     formatAddress(e.By),
	}}
}

const (
	TypeRoleGranted = "role.granted"
	TypeRoleRevoked = "role.revoked"
)

// RoleChanged reports a role grant or revocation made after genesis.
type RoleChanged struct {
	Role    string
	Account common.Address
	Granted bool
	By      common.Address
}

func (e RoleChanged) EventType() string {
	if e.Granted {
		return TypeRoleGranted
	}
	return TypeRoleRevoked
}

func (e RoleChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"role":    e.Role,
		"account": formatAddress(e.Account),
		"by":      formatAddress(e.By),
	}}
}

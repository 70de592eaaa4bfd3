package rpc

import (
	"context"
	"encoding/json"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var okResult = map[string]bool{"ok": true}

type setPausedParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type roleParams struct {
	Role    string `json:"role"`
	Address string `json:"address"`
}

type hasRoleResult struct {
	Role    string `json:"role"`
	Address string `json:"address"`
	Granted bool   `json:"granted"`
}

func (s *Server) registerMethods() map[string]method {
	methods := map[string]method{
		"admin_setPaused":  {auth: true, fn: s.handleAdminSetPaused},
		"admin_grantRole":  {auth: true, fn: s.roleChange(true)},
		"admin_revokeRole": {auth: true, fn: s.roleChange(false)},
		"admin_hasRole":    {fn: s.handleAdminHasRole},
		"admin_isPaused":   {fn: s.handleAdminIsPaused},
	}
	for _, group := range []map[string]method{
		s.tokenMethods(),
		s.oracleMethods(),
		s.loyaltyMethods(),
		s.referralMethods(),
		s.marketMethods(),
		s.airdropMethods(),
	} {
		for name, m := range group {
			methods[name] = m
		}
	}
	return methods
}

func (s *Server) handleAdminSetPaused(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params setPausedParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if err := s.node.SetModulePaused(ctx, caller, params.Module, params.Paused); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleAdminIsPaused(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params struct {
		Module string `json:"module"`
	}
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	return map[string]bool{"paused": s.node.IsPaused(params.Module)}, nil
}

func (s *Server) roleChange(granted bool) handlerFunc {
	return func(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
		var params roleParams
		if err := decodeParams(raw, &params); err != nil {
			return nil, err
		}
		account, err := parseAddress("address", params.Address)
		if err != nil {
			return nil, err
		}
		if err := s.node.SetRole(ctx, caller, params.Role, account, granted); err != nil {
			return nil, err
		}
		return okResult, nil
	}
}

func (s *Server) handleAdminHasRole(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params roleParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	return hasRoleResult{
		Role:    params.Role,
		Address: formatAddress(account),
		Granted: s.node.HasRole(params.Role, account),
	}, nil
}

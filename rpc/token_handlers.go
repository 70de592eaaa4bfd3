package rpc

import (
	"context"
	"encoding/json"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core"
	"shopchain/native/fees"
	"shopchain/native/token"
)

type transferParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type amountParams struct {
	Amount string `json:"amount"`
}

type flagParams struct {
	Address string `json:"address"`
	Enabled bool   `json:"enabled"`
}

type feePolicyParams struct {
	BuyBps      uint32 `json:"buyBps"`
	SellBps     uint32 `json:"sellBps"`
	TransferBps uint32 `json:"transferBps"`
}

type recipientsParams struct {
	Treasury  string `json:"treasury"`
	Liquidity string `json:"liquidity"`
	Marketing string `json:"marketing"`
}

type snapshotParams struct {
	Address  string `json:"address,omitempty"`
	Snapshot uint64 `json:"snapshot"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type transferResult struct {
	Kind      string `json:"kind"`
	Fee       string `json:"fee"`
	Received  string `json:"received"`
	Treasury  string `json:"treasury"`
	Liquidity string `json:"liquidity"`
	Marketing string `json:"marketing"`
}

type tokenConfigResult struct {
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	Decimals          uint8  `json:"decimals"`
	MaxSupply         string `json:"maxSupply"`
	MaxTransferAmount string `json:"maxTransferAmount"`
	TradingEnabled    bool   `json:"tradingEnabled"`
	TradingEnabledAt  uint64 `json:"tradingEnabledAt"`
	Treasury          string `json:"treasury"`
	Liquidity         string `json:"liquidity"`
	Marketing         string `json:"marketing"`
	Version           uint64 `json:"version"`
	Paused            bool   `json:"paused"`
}

type feePolicyResult struct {
	BuyBps      uint32 `json:"buyBps"`
	SellBps     uint32 `json:"sellBps"`
	TransferBps uint32 `json:"transferBps"`
	Version     uint64 `json:"version"`
}

func policyResult(p fees.Policy) feePolicyResult {
	return feePolicyResult{BuyBps: p.BuyBps, SellBps: p.SellBps, TransferBps: p.TransferBps, Version: p.Version}
}

func (s *Server) tokenMethods() map[string]method {
	return map[string]method{
		"token_balanceOf":            {fn: s.handleTokenBalanceOf},
		"token_totalSupply":          {fn: s.handleTokenTotalSupply},
		"token_config":               {fn: s.handleTokenConfig},
		"token_feePolicy":            {fn: s.handleTokenFeePolicy},
		"token_balanceAt":            {fn: s.handleTokenBalanceAt},
		"token_totalSupplyAt":        {fn: s.handleTokenTotalSupplyAt},
		"token_transfer":             {auth: true, fn: s.handleTokenTransfer},
		"token_mint":                 {auth: true, fn: s.handleTokenMint},
		"token_burn":                 {auth: true, fn: s.handleTokenBurn},
		"token_enableTrading":        {auth: true, fn: s.handleTokenEnableTrading},
		"token_snapshot":             {auth: true, fn: s.handleTokenSnapshot},
		"token_setFeePolicy":         {auth: true, fn: s.handleTokenSetFeePolicy},
		"token_setExcluded":          {auth: true, fn: s.handleTokenSetExcluded},
		"token_setAMMPair":           {auth: true, fn: s.handleTokenSetAMMPair},
		"token_setMaxTransferAmount": {auth: true, fn: s.handleTokenSetMaxTransferAmount},
		"token_setFeeRecipients":     {auth: true, fn: s.handleTokenSetFeeRecipients},
	}
}

func (s *Server) handleTokenBalanceOf(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params addressParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	bal, err := core.Query(s.node.Executor(), func() (*big.Int, error) { return s.node.Token().BalanceOf(addr) })
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: formatAddress(addr), Balance: formatAmount(bal)}, nil
}

func (s *Server) handleTokenTotalSupply(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	supply, err := core.Query(s.node.Executor(), s.node.Token().TotalSupply)
	if err != nil {
		return nil, err
	}
	return map[string]string{"totalSupply": formatAmount(supply)}, nil
}

func (s *Server) handleTokenConfig(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	return core.Query(s.node.Executor(), func() (tokenConfigResult, error) {
		cfg, err := s.node.Token().Config()
		if err != nil {
			return tokenConfigResult{}, err
		}
		return tokenConfigResult{
			Name:              cfg.Name,
			Symbol:            cfg.Symbol,
			Decimals:          token.Decimals,
			MaxSupply:         formatAmount(cfg.MaxSupply),
			MaxTransferAmount: formatAmount(cfg.MaxTransferAmount),
			TradingEnabled:    cfg.TradingEnabled,
			TradingEnabledAt:  cfg.TradingEnabledAt,
			Treasury:          formatAddress(cfg.Recipients.Treasury),
			Liquidity:         formatAddress(cfg.Recipients.Liquidity),
			Marketing:         formatAddress(cfg.Recipients.Marketing),
			Version:           cfg.Version,
			Paused:            s.node.Token().Paused(),
		}, nil
	})
}

func (s *Server) handleTokenFeePolicy(_ context.Context, _ ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	policy, err := core.Query(s.node.Executor(), s.node.Token().FeePolicy)
	if err != nil {
		return nil, err
	}
	return policyResult(policy), nil
}

func (s *Server) handleTokenBalanceAt(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params snapshotParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	bal, err := core.Query(s.node.Executor(), func() (*big.Int, error) {
		return s.node.Token().BalanceAt(addr, params.Snapshot)
	})
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: formatAddress(addr), Balance: formatAmount(bal)}, nil
}

func (s *Server) handleTokenTotalSupplyAt(_ context.Context, _ ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params snapshotParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	supply, err := core.Query(s.node.Executor(), func() (*big.Int, error) {
		return s.node.Token().TotalSupplyAt(params.Snapshot)
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"totalSupply": formatAmount(supply)}, nil
}

func (s *Server) handleTokenTransfer(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params transferParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	res, err := core.Do(ctx, s.node.Executor(), "token_transfer", func() (*token.TransferResult, error) {
		return s.node.Token().Transfer(caller, to, amount)
	})
	if err != nil {
		return nil, err
	}
	return transferResult{
		Kind:      res.Kind,
		Fee:       formatAmount(res.Fee),
		Received:  formatAmount(res.Received),
		Treasury:  formatAmount(res.Distribution.Treasury),
		Liquidity: formatAmount(res.Distribution.Liquidity),
		Marketing: formatAmount(res.Distribution.Marketing),
	}, nil
}

func (s *Server) handleTokenMint(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params transferParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "token_mint", func() error {
		return s.node.Token().Mint(caller, to, amount)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleTokenBurn(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params amountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "token_burn", func() error {
		return s.node.Token().Burn(caller, amount)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleTokenEnableTrading(ctx context.Context, caller ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	if err := s.node.Executor().Execute(ctx, "token_enableTrading", func() error {
		return s.node.Token().EnableTrading(caller)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleTokenSnapshot(ctx context.Context, caller ethcommon.Address, _ json.RawMessage) (interface{}, error) {
	id, err := core.Do(ctx, s.node.Executor(), "token_snapshot", func() (uint64, error) {
		return s.node.Token().Snapshot(caller)
	})
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"id": id}, nil
}

func (s *Server) handleTokenSetFeePolicy(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params feePolicyParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	policy, err := core.Do(ctx, s.node.Executor(), "token_setFeePolicy", func() (fees.Policy, error) {
		return s.node.Token().SetFeePolicy(caller, fees.Policy{
			BuyBps:      params.BuyBps,
			SellBps:     params.SellBps,
			TransferBps: params.TransferBps,
		})
	})
	if err != nil {
		return nil, err
	}
	return policyResult(policy), nil
}

func (s *Server) handleTokenSetExcluded(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	return s.setTokenFlag(ctx, caller, raw, "token_setExcluded", s.node.Token().SetExcluded)
}

func (s *Server) handleTokenSetAMMPair(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	return s.setTokenFlag(ctx, caller, raw, "token_setAMMPair", s.node.Token().SetAMMPair)
}

func (s *Server) setTokenFlag(ctx context.Context, caller ethcommon.Address, raw json.RawMessage, op string, set func(caller, addr ethcommon.Address, enabled bool) error) (interface{}, error) {
	var params flagParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, op, func() error {
		return set(caller, addr, params.Enabled)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleTokenSetMaxTransferAmount(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params amountParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "token_setMaxTransferAmount", func() error {
		return s.node.Token().SetMaxTransferAmount(caller, amount)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

func (s *Server) handleTokenSetFeeRecipients(ctx context.Context, caller ethcommon.Address, raw json.RawMessage) (interface{}, error) {
	var params recipientsParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	var recipients token.Recipients
	var err error
	if recipients.Treasury, err = parseAddress("treasury", params.Treasury); err != nil {
		return nil, err
	}
	if recipients.Liquidity, err = parseAddress("liquidity", params.Liquidity); err != nil {
		return nil, err
	}
	if recipients.Marketing, err = parseAddress("marketing", params.Marketing); err != nil {
		return nil, err
	}
	if err := s.node.Executor().Execute(ctx, "token_setFeeRecipients", func() error {
		return s.node.Token().SetFeeRecipients(caller, recipients)
	}); err != nil {
		return nil, err
	}
	return okResult, nil
}

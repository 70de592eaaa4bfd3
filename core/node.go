package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/core/genesis"
	"shopchain/core/pricing"
	"shopchain/core/state"
	"shopchain/native/airdrop"
	"shopchain/native/common"
	"shopchain/native/loyalty"
	"shopchain/native/market"
	"shopchain/native/referral"
	"shopchain/native/token"
	"shopchain/storage"
)

var (
	// ErrNotInitialized is returned before a genesis was committed.
	ErrNotInitialized = errors.New("core: node not initialised")
	ErrUnknownModule  = errors.New("core: unknown module")
	ErrUnknownRole    = errors.New("core: unknown role")
)

// NodeConfig carries the settings modules need at construction.
type NodeConfig struct {
	Accounts market.Accounts
	Oracle   pricing.Guard
}

// Node is the central controller, wiring all ledgers to one state manager
// and one executor.
type Node struct {
	db       storage.Database
	state    *state.Manager
	exec     *Executor
	logger   *slog.Logger
	token    *token.Ledger
	oracle   *pricing.Oracle
	loyalty  *loyalty.Ledger
	referral *referral.Graph
	market   *market.Market
	airdrop  *airdrop.Distributor
}

func NewNode(db storage.Database, cfg NodeConfig, emitter events.Emitter, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	st := state.NewManager(db)
	ledger := token.NewLedger(st)
	pauses := ledger.Pauses()

	oracle := pricing.NewOracle(st, cfg.Oracle)
	graph := referral.NewGraph(st, ledger, cfg.Accounts.RewardsPool)
	loyal := loyalty.NewLedger(st, graph)
	loyal.SetPauses(pauses)
	shop := market.New(st, ledger, oracle, loyal, graph, cfg.Accounts)
	shop.SetPauses(pauses)
	drops := airdrop.NewDistributor(st, ledger)
	drops.SetPauses(pauses)

	return &Node{
		db:       db,
		state:    st,
		exec:     NewExecutor(st, emitter, logger),
		logger:   logger.With("component", "node"),
		token:    ledger,
		oracle:   oracle,
		loyalty:  loyal,
		referral: graph,
		market:   shop,
		airdrop:  drops,
	}
}

func (n *Node) Executor() *Executor { return n.exec }
func (n *Node) Token() *token.Ledger { return n.token }
func (n *Node) Oracle() *pricing.Oracle { return n.oracle }
func (n *Node) Loyalty() *loyalty.Ledger { return n.loyalty }
func (n *Node) Referral() *referral.Graph { return n.referral }
func (n *Node) Market() *market.Market { return n.market }
func (n *Node) Airdrop() *airdrop.Distributor { return n.airdrop }
func (n *Node) Accounts() market.Accounts { return n.market.Accounts() }

// ApplyGenesis seeds an empty ledger. It fails with genesis.ErrAlreadyApplied
// once a genesis was committed.
func (n *Node) ApplyGenesis(ctx context.Context, spec *genesis.Spec) error {
	err := n.exec.Execute(ctx, "genesis", func() error {
		return genesis.Apply(spec, genesis.Modules{
			State:    n.state,
			Token:    n.token,
			Oracle:   n.oracle,
			Loyalty:  n.loyalty,
			Referral: n.referral,
			Market:   n.market,
		})
	})
	if err != nil {
		return err
	}
	n.logger.Info("genesis applied", "products", len(spec.Products), "discounts", len(spec.Discounts))
	return nil
}

// Ready fails with ErrNotInitialized until a genesis was committed.
func (n *Node) Ready() error {
	applied, err := Query(n.exec, func() (bool, error) { return genesis.Applied(n.state) })
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotInitialized
	}
	return nil
}

// PausableModules lists the modules that honour a pause flag.
var PausableModules = []string{token.ModuleName, loyalty.ModuleName, market.ModuleName, airdrop.ModuleName}

// SetModulePaused flips the pause flag of module. The token ledger keeps its
// own already-paused checks; other modules are flipped unconditionally.
func (n *Node) SetModulePaused(ctx context.Context, caller ethcommon.Address, module string, paused bool) error {
	module = strings.ToLower(strings.TrimSpace(module))
	op := "unpause"
	if paused {
		op = "pause"
	}
	return n.exec.Execute(ctx, op+":"+module, func() error {
		if module == token.ModuleName {
			if paused {
				return n.token.Pause(caller)
			}
			return n.token.Unpause(caller)
		}
		if !isPausable(module) {
			return fmt.Errorf("%w: %q", ErrUnknownModule, module)
		}
		if err := common.Authorize(n.state, common.RolePauser, caller); err != nil {
			return err
		}
		if err := n.token.Pauses().SetPaused(module, paused); err != nil {
			return err
		}
		n.state.AppendEvent(events.ModulePauseChanged{Module: module, Paused: paused, By: caller}.Event())
		return nil
	})
}

// SetRole grants or revokes role for account. Only admins may change roles.
func (n *Node) SetRole(ctx context.Context, caller ethcommon.Address, role string, account ethcommon.Address, granted bool) error {
	op := "revokeRole"
	if granted {
		op = "grantRole"
	}
	return n.exec.Execute(ctx, op, func() error {
		if err := common.Authorize(n.state, common.RoleAdmin, caller); err != nil {
			return err
		}
		if !common.IsRole(role) {
			return fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		if account == (ethcommon.Address{}) {
			return fmt.Errorf("%w: zero account", ErrUnknownRole)
		}
		var err error
		if granted {
			err = n.state.SetRole(role, account.Bytes())
		} else {
			err = n.state.RemoveRole(role, account.Bytes())
		}
		if err != nil {
			return err
		}
		n.state.AppendEvent(events.RoleChanged{Role: role, Account: account, Granted: granted, By: caller}.Event())
		return nil
	})
}

// HasRole reports whether account holds role.
func (n *Node) HasRole(role string, account ethcommon.Address) bool {
	ok, _ := Query(n.exec, func() (bool, error) { return n.state.HasRole(role, account.Bytes()), nil })
	return ok
}

// IsPaused reports the stored pause flag of module.
func (n *Node) IsPaused(module string) bool {
	paused, _ := Query(n.exec, func() (bool, error) {
		return n.token.Pauses().IsPaused(module), nil
	})
	return paused
}

func isPausable(module string) bool {
	for _, m := range PausableModules {
		if m == module {
			return true
		}
	}
	return false
}

// Close releases the underlying database.
func (n *Node) Close() error {
	if n.db == nil {
		return nil
	}
	return n.db.Close()
}

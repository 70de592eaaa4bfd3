package referral

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/core/types"
	"shopchain/native/common"
	"shopchain/native/token"
)

const (
	// MaxLevels bounds how far up the tree commissions are paid.
	MaxLevels = 5
	// MaxLevelBps bounds the commission of a single level.
	MaxLevelBps    = 1_000
	bpsDenominator = 10_000
)

// DefaultLevels returns the launch commission table: 5%, 3% and 1% for the
// first three ancestors.
func DefaultLevels() []uint32 { return []uint32{500, 300, 100} }

type graphState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr []byte) bool
	AppendEvent(*types.Event)
}

// Ledger moves commission tokens.
type Ledger interface {
	Transfer(from, to ethcommon.Address, amount *big.Int) (*token.TransferResult, error)
}

// Converter prices USD cents in token base units.
type Converter interface {
	USDCentsToTokens(cents uint64) (*big.Int, error)
}

// Node is the stored view of one address in the referral tree.
type Node struct {
	Referrer      ethcommon.Address
	RegisteredAt  uint64
	ReferralCount uint64
	EarnedCents   uint64
	EarnedTokens  *big.Int
}

// HasReferrer reports whether the node has an upstream edge.
func (n Node) HasReferrer() bool { return n.Referrer != (ethcommon.Address{}) }

type levelConfig struct {
	Levels  []uint32
	Version uint64
}

var levelsKey = []byte("referral/levels")

func nodeKey(addr ethcommon.Address) []byte {
	return append([]byte("referral/node/"), addr.Bytes()...)
}

// Graph stores referral edges (referral -> referrer) and pays multi-level
// commissions from the rewards pool.
type Graph struct {
	st     graphState
	ledger Ledger
	pool   ethcommon.Address
	nowFn  func() time.Time
}

// NewGraph creates a referral graph that pays commissions out of pool.
func NewGraph(st graphState, ledger Ledger, pool ethcommon.Address) *Graph {
	return &Graph{st: st, ledger: ledger, pool: pool, nowFn: time.Now}
}

// SetNowFunc overrides the clock used for timestamps.
func (g *Graph) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	g.nowFn = now
}

// Node returns the stored node for addr. Unknown addresses yield an empty
// node.
func (g *Graph) Node(addr ethcommon.Address) (Node, error) {
	var n Node
	if _, err := g.st.KVGet(nodeKey(addr), &n); err != nil {
		return Node{}, err
	}
	if n.EarnedTokens == nil {
		n.EarnedTokens = big.NewInt(0)
	}
	return n, nil
}

func (g *Graph) putNode(addr ethcommon.Address, n Node) error {
	if n.EarnedTokens == nil {
		n.EarnedTokens = big.NewInt(0)
	}
	return g.st.KVPut(nodeKey(addr), n)
}

// ReferrerOf returns the direct referrer of referral.
func (g *Graph) ReferrerOf(referral ethcommon.Address) (ethcommon.Address, bool, error) {
	n, err := g.Node(referral)
	if err != nil {
		return ethcommon.Address{}, false, err
	}
	return n.Referrer, n.HasReferrer(), nil
}

// ReferralCount returns the number of direct referrals of referrer.
func (g *Graph) ReferralCount(referrer ethcommon.Address) (uint64, error) {
	n, err := g.Node(referrer)
	if err != nil {
		return 0, err
	}
	return n.ReferralCount, nil
}

// Chain returns up to max ancestors of addr, nearest first.
func (g *Graph) Chain(addr ethcommon.Address, max int) ([]ethcommon.Address, error) {
	var out []ethcommon.Address
	current := addr
	for len(out) < max {
		ref, ok, err := g.ReferrerOf(current)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, ref)
		current = ref
	}
	return out, nil
}

// RegisterEdge records referrer as the referrer of referral. Edges are
// immutable: the first registration wins.
func (g *Graph) RegisterEdge(referral, referrer ethcommon.Address) error {
	zero := ethcommon.Address{}
	if referrer == zero || referral == zero {
		return ErrInvalidReferrer
	}
	if referral == referrer {
		return ErrSelfReferral
	}
	node, err := g.Node(referral)
	if err != nil {
		return err
	}
	if node.HasReferrer() {
		return common.WithParams(ErrAlreadyReferred, "referral", referral.Hex(), "referrer", node.Referrer.Hex())
	}
	for current := referrer; ; {
		ancestor, ok, err := g.ReferrerOf(current)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if ancestor == referral {
			return common.WithParams(ErrReferralCycle, "referral", referral.Hex(), "referrer", referrer.Hex())
		}
		current = ancestor
	}

	node.Referrer = referrer
	node.RegisteredAt = uint64(g.nowFn().Unix())
	if err := g.putNode(referral, node); err != nil {
		return err
	}
	parent, err := g.Node(referrer)
	if err != nil {
		return err
	}
	parent.ReferralCount++
	if err := g.putNode(referrer, parent); err != nil {
		return err
	}
	g.st.AppendEvent(events.ReferralRegistered{Referral: referral, Referrer: referrer}.Event())
	return nil
}

// Levels returns the per-level commission table in basis points.
func (g *Graph) Levels() ([]uint32, uint64, error) {
	var cfg levelConfig
	ok, err := g.st.KVGet(levelsKey, &cfg)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return DefaultLevels(), 0, nil
	}
	return cfg.Levels, cfg.Version, nil
}

// SetLevelCommissions replaces the commission table.
func (g *Graph) SetLevelCommissions(caller ethcommon.Address, levels []uint32) error {
	if err := common.Authorize(g.st, common.RoleReferralAdmin, caller); err != nil {
		return err
	}
	if err := ValidateLevels(levels); err != nil {
		return err
	}
	_, version, err := g.Levels()
	if err != nil {
		return err
	}
	cfg := levelConfig{Levels: append([]uint32(nil), levels...), Version: version + 1}
	if err := g.st.KVPut(levelsKey, cfg); err != nil {
		return err
	}
	g.st.AppendEvent(events.ReferralLevelsUpdated{Levels: cfg.Levels, Version: cfg.Version}.Event())
	return nil
}

// ValidateLevels checks the level count and per-level ceiling.
func ValidateLevels(levels []uint32) error {
	if len(levels) > MaxLevels {
		return fmt.Errorf("%w: %d levels exceed %d", ErrInvalidLevels, len(levels), MaxLevels)
	}
	for i, bps := range levels {
		if bps > MaxLevelBps {
			return fmt.Errorf("%w: level %d at %d bps exceeds %d", ErrInvalidLevels, i+1, bps, MaxLevelBps)
		}
	}
	return nil
}

// Reward is one commission paid by DistributeRewards.
type Reward struct {
	Referrer ethcommon.Address
	Level    uint32
	Cents    uint64
	Tokens   *big.Int
}

// Payout summarises the commissions paid for one purchase.
type Payout struct {
	Rewards     []Reward
	TotalCents  uint64
	TotalTokens *big.Int
}

// DistributeRewards pays each ancestor of customer, up to the configured
// number of levels, its commission on purchaseCents. The walk stops at the
// first address without a referrer.
func (g *Graph) DistributeRewards(customer ethcommon.Address, purchaseCents uint64, conv Converter) (Payout, error) {
	payout := Payout{TotalTokens: big.NewInt(0)}
	levels, _, err := g.Levels()
	if err != nil {
		return Payout{}, err
	}
	current := customer
	for i, bps := range levels {
		ancestor, ok, err := g.ReferrerOf(current)
		if err != nil {
			return Payout{}, err
		}
		if !ok {
			break
		}
		current = ancestor
		cents := purchaseCents / bpsDenominator * uint64(bps)
		cents += purchaseCents % bpsDenominator * uint64(bps) / bpsDenominator
		if cents == 0 {
			continue
		}
		tokens, err := conv.USDCentsToTokens(cents)
		if err != nil {
			return Payout{}, err
		}
		if tokens.Sign() > 0 {
			if _, err := g.ledger.Transfer(g.pool, ancestor, tokens); err != nil {
				return Payout{}, fmt.Errorf("referral: level %d payout: %w", i+1, err)
			}
		}
		node, err := g.Node(ancestor)
		if err != nil {
			return Payout{}, err
		}
		node.EarnedCents += cents
		node.EarnedTokens = new(big.Int).Add(node.EarnedTokens, tokens)
		if err := g.putNode(ancestor, node); err != nil {
			return Payout{}, err
		}
		level := uint32(i + 1)
		g.st.AppendEvent(events.ReferralRewarded{
			Referrer:    ancestor,
			Customer:    customer,
			Level:       level,
			AmountCents: cents,
			Tokens:      tokens,
		}.Event())
		payout.Rewards = append(payout.Rewards, Reward{Referrer: ancestor, Level: level, Cents: cents, Tokens: tokens})
		payout.TotalCents += cents
		payout.TotalTokens.Add(payout.TotalTokens, tokens)
	}
	return payout, nil
}

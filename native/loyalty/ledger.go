package loyalty

import (
	"fmt"
	"math/bits"
	"strconv"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/core/state"
	"shopchain/core/types"
	"shopchain/native/common"
)

// ModuleName identifies the loyalty ledger in pause flags and logs.
const ModuleName = "loyalty"

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr []byte) bool
	AppendEvent(*types.Event)
	Checkpoint() state.Checkpoint
	RevertTo(state.Checkpoint)
}

// ReferralGraph is the referral edge store. The loyalty ledger never keeps
// its own copy of edges.
type ReferralGraph interface {
	ReferrerOf(referral ethcommon.Address) (ethcommon.Address, bool, error)
	RegisterEdge(referral, referrer ethcommon.Address) error
	ReferralCount(referrer ethcommon.Address) (uint64, error)
}

var (
	tiersKey       = []byte("loyalty/tiers")
	badgeSerialKey = []byte("loyalty/badge/serial")
)

func customerKey(addr ethcommon.Address) []byte {
	return append([]byte("loyalty/customer/"), addr.Bytes()...)
}

func badgeKey(addr ethcommon.Address) []byte {
	return append([]byte("loyalty/badge/"), addr.Bytes()...)
}

// Ledger tracks customer spend, points, tiers and badges.
type Ledger struct {
	st     ledgerState
	graph  ReferralGraph
	pauses common.PauseView
	nowFn  func() time.Time
}

// NewLedger creates a loyalty ledger backed by st that registers referral
// edges in graph.
func NewLedger(st ledgerState, graph ReferralGraph) *Ledger {
	return &Ledger{st: st, graph: graph, nowFn: time.Now}
}

func (l *Ledger) SetPauses(p common.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// SetNowFunc overrides the clock used for timestamps.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	l.nowFn = now
}

// Initialize stores the tier table when none exists yet.
func (l *Ledger) Initialize(tiers []Tier) error {
	ok, err := l.st.KVGet(tiersKey, nil)
	if err != nil || ok {
		return err
	}
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	for i := range tiers {
		var prev *Tier
		if i > 0 {
			prev = &tiers[i-1]
		}
		if err := validateTier(prev, tiers[i]); err != nil {
			return fmt.Errorf("tier %d: %w", i, err)
		}
	}
	if tiers[0].MinPoints != 0 || tiers[0].MinSpendCents != 0 {
		return fmt.Errorf("%w: tier 0 must have zero thresholds", ErrInvalidTier)
	}
	return l.st.KVPut(tiersKey, tiers)
}

// Tiers returns the tier table.
func (l *Ledger) Tiers() ([]Tier, error) {
	var tiers []Tier
	ok, err := l.st.KVGet(tiersKey, &tiers)
	if err != nil {
		return nil, err
	}
	if !ok || len(tiers) == 0 {
		return DefaultTiers(), nil
	}
	return tiers, nil
}

// Customer returns the loyalty record for addr. The referral count is read
// from the referral graph.
func (l *Ledger) Customer(addr ethcommon.Address) (Customer, bool, error) {
	rec, ok, err := l.loadCustomer(addr)
	if err != nil {
		return Customer{}, false, err
	}
	if l.graph != nil {
		count, err := l.graph.ReferralCount(addr)
		if err != nil {
			return Customer{}, false, err
		}
		rec.ReferralCount = count
		if count > 0 {
			ok = true
		}
	}
	return rec, ok, nil
}

// Badge returns the membership badge held by addr.
func (l *Ledger) Badge(addr ethcommon.Address) (BadgeView, error) {
	var badge Badge
	ok, err := l.st.KVGet(badgeKey(addr), &badge)
	if err != nil {
		return BadgeView{}, err
	}
	if !ok {
		return BadgeView{}, common.WithParams(ErrCustomerNotFound, "customer", addr.Hex())
	}
	tiers, err := l.Tiers()
	if err != nil {
		return BadgeView{}, err
	}
	view := BadgeView{Badge: badge}
	if int(badge.Tier) < len(tiers) {
		view.TierName = tiers[badge.Tier].Name
		view.URI = tiers[badge.Tier].BadgeURI
	}
	return view, nil
}

func (l *Ledger) loadCustomer(addr ethcommon.Address) (Customer, bool, error) {
	var rec Customer
	ok, err := l.st.KVGet(customerKey(addr), &rec)
	if err != nil {
		return Customer{}, false, err
	}
	return rec, ok, nil
}

func (l *Ledger) storeCustomer(addr ethcommon.Address, rec Customer) error {
	return l.st.KVPut(customerKey(addr), rec)
}

// issueBadge mints a fresh badge serial for owner at tier, replacing any
// previous badge.
func (l *Ledger) issueBadge(owner ethcommon.Address, rec *Customer) error {
	var serial uint64
	if _, err := l.st.KVGet(badgeSerialKey, &serial); err != nil {
		return err
	}
	serial++
	if err := l.st.KVPut(badgeSerialKey, serial); err != nil {
		return err
	}
	badge := Badge{Owner: owner, Tier: rec.Tier, Serial: serial, IssuedAt: uint64(l.now().Unix())}
	if err := l.st.KVPut(badgeKey(owner), badge); err != nil {
		return err
	}
	l.emit(events.LoyaltyBadgeIssued{Owner: owner, Tier: rec.Tier, Serial: serial, Revoked: rec.BadgeSerial})
	rec.BadgeSerial = serial
	return nil
}

func (l *Ledger) emit(evt interface{ Event() *types.Event }) {
	l.st.AppendEvent(evt.Event())
}

func (l *Ledger) now() time.Time {
	if l.nowFn == nil {
		return time.Now()
	}
	return l.nowFn()
}

func addUint64(a, b uint64, field string) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, common.WithParams(ErrOverflow, "field", field, "value", strconv.FormatUint(a, 10))
	}
	return sum, nil
}

func mulDivBps(amount uint64, bps uint32) uint64 {
	hi, lo := bits.Mul64(amount, uint64(bps))
	quo, _ := bits.Div64(hi, lo, bpsDenominator)
	return quo
}

package airdrop

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/core/state"
	"shopchain/core/types"
	"shopchain/native/common"
	"shopchain/native/token"
)

// ModuleName identifies the airdrop distributor in pause flags and logs.
const ModuleName = "airdrop"

type distributorState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr []byte) bool
	AppendEvent(*types.Event)
	Checkpoint() state.Checkpoint
	RevertTo(state.Checkpoint)
}

// Ledger funds claims.
type Ledger interface {
	Transfer(from, to ethcommon.Address, amount *big.Int) (*token.TransferResult, error)
}

// Campaign is an allow-list of allocations committed to by a Merkle root and
// paid out of Source.
type Campaign struct {
	ID       uint64
	Name     string
	Root     ethcommon.Hash
	Source   ethcommon.Address
	Total    *big.Int
	Claimed  *big.Int
	StartsAt uint64
	EndsAt   uint64
	Active   bool
}

// Remaining returns the unclaimed budget.
func (c Campaign) Remaining() *big.Int {
	total := new(big.Int)
	if c.Total != nil {
		total.Set(c.Total)
	}
	if c.Claimed != nil {
		total.Sub(total, c.Claimed)
	}
	return total
}

var campaignSeqKey = []byte("airdrop/campaign/seq")

func campaignKey(id uint64) []byte {
	return []byte("airdrop/campaign/" + strconv.FormatUint(id, 10))
}

func claimKey(id uint64, account ethcommon.Address) []byte {
	return append([]byte("airdrop/claim/"+strconv.FormatUint(id, 10)+"/"), account.Bytes()...)
}

// Distributor redeems Merkle allow-list allocations.
type Distributor struct {
	st     distributorState
	ledger Ledger
	pauses common.PauseView
	nowFn  func() time.Time
}

func NewDistributor(st distributorState, ledger Ledger) *Distributor {
	return &Distributor{st: st, ledger: ledger, nowFn: time.Now}
}

func (d *Distributor) SetPauses(p common.PauseView) {
	if d == nil {
		return
	}
	d.pauses = p
}

func (d *Distributor) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	d.nowFn = now
}

// CreateCampaign stores a new active campaign and returns it with its id.
func (d *Distributor) CreateCampaign(caller ethcommon.Address, c Campaign) (Campaign, error) {
	if err := common.Authorize(d.st, common.RoleAirdropAdmin, caller); err != nil {
		return Campaign{}, err
	}
	if err := common.Guard(d.pauses, ModuleName); err != nil {
		return Campaign{}, err
	}
	if c.Root == (ethcommon.Hash{}) || c.Source == (ethcommon.Address{}) {
		return Campaign{}, common.WithParams(ErrInvalidCampaignOrSource,
			"root", c.Root.Hex(), "source", c.Source.Hex())
	}
	if c.Total == nil || c.Total.Sign() <= 0 {
		return Campaign{}, ErrInvalidAmount
	}
	if c.EndsAt != 0 && c.EndsAt < c.StartsAt {
		return Campaign{}, common.WithParams(ErrInvalidCampaignOrSource,
			"startsAt", strconv.FormatUint(c.StartsAt, 10), "endsAt", strconv.FormatUint(c.EndsAt, 10))
	}
	var seq uint64
	if _, err := d.st.KVGet(campaignSeqKey, &seq); err != nil {
		return Campaign{}, err
	}
	seq++
	if err := d.st.KVPut(campaignSeqKey, seq); err != nil {
		return Campaign{}, err
	}
	c.ID = seq
	c.Name = strings.TrimSpace(c.Name)
	c.Total = new(big.Int).Set(c.Total)
	c.Claimed = big.NewInt(0)
	c.Active = true
	if err := d.st.KVPut(campaignKey(c.ID), c); err != nil {
		return Campaign{}, err
	}
	d.st.AppendEvent(events.AirdropCampaignCreated{ID: c.ID, Root: c.Root, Source: c.Source, Total: c.Total}.Event())
	return c, nil
}

// SetCampaignActive opens or closes a campaign for claims.
func (d *Distributor) SetCampaignActive(caller ethcommon.Address, id uint64, active bool) error {
	if err := common.Authorize(d.st, common.RoleAirdropAdmin, caller); err != nil {
		return err
	}
	c, err := d.Campaign(id)
	if err != nil {
		return err
	}
	c.Active = active
	return d.st.KVPut(campaignKey(id), c)
}

// Campaign returns the stored campaign.
func (d *Distributor) Campaign(id uint64) (Campaign, error) {
	var c Campaign
	ok, err := d.st.KVGet(campaignKey(id), &c)
	if err != nil {
		return Campaign{}, err
	}
	if !ok {
		return Campaign{}, common.WithParams(ErrInvalidCampaignOrSource, "campaign", strconv.FormatUint(id, 10))
	}
	return c, nil
}

// Claimed reports whether account already redeemed its allocation.
func (d *Distributor) Claimed(id uint64, account ethcommon.Address) (bool, error) {
	return d.st.KVGet(claimKey(id, account), nil)
}

// Claim pays account its allocation from the campaign source after checking
// the Merkle proof.
func (d *Distributor) Claim(account ethcommon.Address, id uint64, amount *big.Int, proof []ethcommon.Hash) (err error) {
	if err := common.Guard(d.pauses, ModuleName); err != nil {
		return err
	}
	c, err := d.Campaign(id)
	if err != nil {
		return err
	}
	now := uint64(d.nowFn().Unix())
	if !c.Active || c.Source == (ethcommon.Address{}) ||
		(c.StartsAt != 0 && now < c.StartsAt) || (c.EndsAt != 0 && now > c.EndsAt) {
		return common.WithParams(ErrInvalidCampaignOrSource, "campaign", strconv.FormatUint(id, 10))
	}
	claimed, err := d.Claimed(id, account)
	if err != nil {
		return err
	}
	if claimed {
		return common.WithParams(ErrAlreadyClaimed, "campaign", strconv.FormatUint(id, 10), "account", account.Hex())
	}
	leaf, err := Leaf(account, amount)
	if err != nil {
		return err
	}
	if !Verify(c.Root, leaf, proof) {
		return common.WithParams(ErrInvalidProof, "campaign", strconv.FormatUint(id, 10), "account", account.Hex())
	}
	if remaining := c.Remaining(); remaining.Cmp(amount) < 0 {
		return common.WithParams(ErrCampaignExhausted,
			"required", amount.String(), "available", remaining.String())
	}

	cp := d.st.Checkpoint()
	defer func() {
		if err != nil {
			d.st.RevertTo(cp)
		}
	}()
	if _, err := d.ledger.Transfer(c.Source, account, amount); err != nil {
		return err
	}
	c.Claimed = new(big.Int).Add(c.Claimed, amount)
	if err := d.st.KVPut(campaignKey(id), c); err != nil {
		return err
	}
	if err := d.st.KVPut(claimKey(id, account), true); err != nil {
		return err
	}
	d.st.AppendEvent(events.AirdropClaimed{Campaign: id, Account: account, Amount: amount}.Event())
	return nil
}

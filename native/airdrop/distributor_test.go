package airdrop

import (
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"shopchain/core/state"
	"shopchain/native/common"
	"shopchain/native/fees"
	"shopchain/native/token"
	"shopchain/storage"
)

var (
	admin  = ethcommon.HexToAddress("0xa0")
	source = ethcommon.HexToAddress("0xa5")
)

type allocation struct {
	account ethcommon.Address
	amount  *big.Int
}

func allocations() []allocation {
	out := make([]allocation, 5)
	for i := range out {
		out[i] = allocation{
			account: ethcommon.BigToAddress(big.NewInt(int64(0x100 + i))),
			amount:  token.WholeTokens(int64(10 * (i + 1))),
		}
	}
	return out
}

func buildTree(t *testing.T, allocs []allocation) *Tree {
	t.Helper()
	leaves := make([]ethcommon.Hash, len(allocs))
	for i, a := range allocs {
		leaf, err := Leaf(a.account, a.amount)
		require.NoError(t, err)
		leaves[i] = leaf
	}
	return NewTree(leaves)
}

func newTestDistributor(t *testing.T) (*Distributor, *token.Ledger) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	for _, role := range []string{common.RoleAdmin, common.RoleMinter, common.RoleAirdropAdmin} {
		require.NoError(t, mgr.SetRole(role, admin.Bytes()))
	}
	ledger := token.NewLedger(mgr)
	require.NoError(t, ledger.Initialize(token.Config{
		MaxSupply: token.WholeTokens(1_000_000),
		Recipients: token.Recipients{
			Treasury:  ethcommon.HexToAddress("0xf1"),
			Liquidity: ethcommon.HexToAddress("0xf2"),
			Marketing: ethcommon.HexToAddress("0xf3"),
		},
	}, fees.DefaultPolicy()))
	require.NoError(t, ledger.SetExcluded(admin, source, true))
	require.NoError(t, ledger.Mint(admin, source, token.WholeTokens(1_000)))
	d := NewDistributor(mgr, ledger)
	d.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return d, ledger
}

func TestMerkleProofsVerifyEveryLeaf(t *testing.T) {
	allocs := allocations()
	tree := buildTree(t, allocs)
	for i, a := range allocs {
		leaf, err := Leaf(a.account, a.amount)
		require.NoError(t, err)
		require.Truef(t, Verify(tree.Root(), leaf, tree.Proof(i)), "leaf %d", i)
	}
	wrong, err := Leaf(allocs[0].account, big.NewInt(1))
	require.NoError(t, err)
	require.False(t, Verify(tree.Root(), wrong, tree.Proof(0)))
}

func TestClaimPaysOnce(t *testing.T) {
	d, ledger := newTestDistributor(t)
	allocs := allocations()
	tree := buildTree(t, allocs)
	c, err := d.CreateCampaign(admin, Campaign{Name: "launch", Root: tree.Root(), Source: source, Total: token.WholeTokens(150)})
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.ID)

	claimant := allocs[2]
	require.NoError(t, d.Claim(claimant.account, c.ID, claimant.amount, tree.Proof(2)))
	bal, err := ledger.BalanceOf(claimant.account)
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(claimant.amount))

	err = d.Claim(claimant.account, c.ID, claimant.amount, tree.Proof(2))
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	stored, err := d.Campaign(c.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Claimed.Cmp(claimant.amount))
}

func TestClaimRejections(t *testing.T) {
	d, _ := newTestDistributor(t)
	allocs := allocations()
	tree := buildTree(t, allocs)

	_, err := d.CreateCampaign(allocs[0].account, Campaign{Root: tree.Root(), Source: source, Total: big.NewInt(1)})
	require.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = d.CreateCampaign(admin, Campaign{Root: tree.Root(), Total: big.NewInt(1)})
	require.ErrorIs(t, err, ErrInvalidCampaignOrSource)

	require.ErrorIs(t, d.Claim(allocs[0].account, 7, allocs[0].amount, tree.Proof(0)), ErrInvalidCampaignOrSource)

	c, err := d.CreateCampaign(admin, Campaign{Root: tree.Root(), Source: source, Total: token.WholeTokens(15)})
	require.NoError(t, err)
	require.ErrorIs(t, d.Claim(allocs[0].account, c.ID, allocs[0].amount, tree.Proof(1)), ErrInvalidProof)
	require.NoError(t, d.Claim(allocs[0].account, c.ID, allocs[0].amount, tree.Proof(0)))
	err = d.Claim(allocs[1].account, c.ID, allocs[1].amount, tree.Proof(1))
	require.ErrorIs(t, err, ErrCampaignExhausted)
	require.Equal(t, token.WholeTokens(5).String(), common.Params(err)["available"])

	require.NoError(t, d.SetCampaignActive(admin, c.ID, false))
	require.ErrorIs(t, d.Claim(allocs[2].account, c.ID, allocs[2].amount, tree.Proof(2)), ErrInvalidCampaignOrSource)
}

func TestClaimRollsBackWhenSourceIsEmpty(t *testing.T) {
	d, ledger := newTestDistributor(t)
	allocs := allocations()
	tree := buildTree(t, allocs)
	_, err := ledger.Transfer(source, admin, token.WholeTokens(1_000))
	require.NoError(t, err)
	c, err := d.CreateCampaign(admin, Campaign{Root: tree.Root(), Source: source, Total: token.WholeTokens(150)})
	require.NoError(t, err)

	err = d.Claim(allocs[0].account, c.ID, allocs[0].amount, tree.Proof(0))
	require.ErrorIs(t, err, token.ErrInsufficientBalance)
	claimed, err := d.Claimed(c.ID, allocs[0].account)
	require.NoError(t, err)
	require.False(t, claimed)
}

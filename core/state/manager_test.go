package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"shopchain/core/types"
	"shopchain/storage"
)

type sampleRecord struct {
	Name  string
	Count uint64
	Total *big.Int
}

func TestKVReadWriteThroughCommit(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	rec := sampleRecord{Name: "alpha", Count: 3, Total: big.NewInt(42)}
	require.NoError(t, mgr.KVPut([]byte("sample/alpha"), rec))

	var staged sampleRecord
	ok, err := mgr.KVGet([]byte("sample/alpha"), &staged)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), staged.Count)

	_, err = db.Get(kvKey([]byte("sample/alpha")))
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = mgr.Commit()
	require.NoError(t, err)
	require.False(t, mgr.Pending())

	reopened := NewManager(db)
	var stored sampleRecord
	ok, err = reopened.KVGet([]byte("sample/alpha"), &stored)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alpha", stored.Name)
	require.Equal(t, 0, stored.Total.Cmp(big.NewInt(42)))
}

func TestRevertToDropsLaterWritesAndEvents(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.NoError(t, mgr.KVPut([]byte("counter"), uint64(1)))
	mgr.AppendEvent(&types.Event{Type: "first"})

	cp := mgr.Checkpoint()
	require.NoError(t, mgr.KVPut([]byte("counter"), uint64(2)))
	require.NoError(t, mgr.KVPut([]byte("other"), uint64(9)))
	require.NoError(t, mgr.KVDelete([]byte("counter")))
	mgr.AppendEvent(&types.Event{Type: "second"})

	mgr.RevertTo(cp)

	var counter uint64
	ok, err := mgr.KVGet([]byte("counter"), &counter)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), counter)

	ok, err = mgr.KVGet([]byte("other"), nil)
	require.NoError(t, err)
	require.False(t, ok)

	events := mgr.Events()
	require.Len(t, events, 1)
	require.Equal(t, "first", events[0].Type)
}

func TestDiscardLeavesDatabaseUntouched(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	require.NoError(t, mgr.KVPut([]byte("kept"), uint64(7)))
	_, err := mgr.Commit()
	require.NoError(t, err)

	require.NoError(t, mgr.KVPut([]byte("kept"), uint64(8)))
	require.NoError(t, mgr.KVDelete([]byte("kept")))
	mgr.Discard()

	var value uint64
	ok, err := mgr.KVGet([]byte("kept"), &value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), value)
}

func TestCommitAppliesDeletes(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	require.NoError(t, mgr.KVPut([]byte("gone"), uint64(1)))
	_, err := mgr.Commit()
	require.NoError(t, err)

	require.NoError(t, mgr.KVDelete([]byte("gone")))
	mgr.AppendEvent(&types.Event{Type: "deleted", Attributes: map[string]string{"key": "gone"}})
	events, err := mgr.Commit()
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "gone", events[0].Attributes["key"])

	ok, err := db.Has(kvKey([]byte("gone")))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVAppendAndGetList(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	var empty [][]byte
	require.NoError(t, mgr.KVGetList([]byte("index"), &empty))
	require.NotNil(t, empty)
	require.Len(t, empty, 0)

	require.NoError(t, mgr.KVAppend([]byte("index"), []byte("a")))
	require.NoError(t, mgr.KVAppend([]byte("index"), []byte("b")))
	require.NoError(t, mgr.KVAppend([]byte("index"), []byte("a")))

	var list [][]byte
	require.NoError(t, mgr.KVGetList([]byte("index"), &list))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, list)
}

func TestRoles(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	addr := []byte{0x01, 0x02}
	other := []byte{0x03}

	require.False(t, mgr.HasRole("ROLE_MINTER", addr))
	require.NoError(t, mgr.SetRole("ROLE_MINTER", addr))
	require.NoError(t, mgr.SetRole("ROLE_MINTER", addr))
	require.NoError(t, mgr.SetRole("ROLE_MINTER", other))
	require.True(t, mgr.HasRole("ROLE_MINTER", addr))

	members, err := mgr.RoleMembers("ROLE_MINTER")
	require.NoError(t, err)
	require.Len(t, members, 2)

	require.NoError(t, mgr.RemoveRole("ROLE_MINTER", addr))
	require.False(t, mgr.HasRole("ROLE_MINTER", addr))
	require.True(t, mgr.HasRole("ROLE_MINTER", other))
	require.Error(t, mgr.SetRole(" ", addr))
}

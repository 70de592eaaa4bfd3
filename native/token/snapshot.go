package token

import (
	"math/big"
	"sort"
	"strconv"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
)

// checkpoint holds the value a balance had at the end of snapshot ID. Values
// are written lazily, right before the first change after a snapshot.
type checkpoint struct {
	ID    uint64
	Value *big.Int
}

// Snapshot records the current balances under a new, strictly increasing id.
func (l *Ledger) Snapshot(caller ethcommon.Address) (uint64, error) {
	if err := common.Authorize(l.st, common.RoleAdmin, caller); err != nil {
		return 0, err
	}
	current, err := l.CurrentSnapshot()
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := l.st.KVPut(snapshotKey, next); err != nil {
		return 0, err
	}
	l.emit(events.TokenSnapshot{ID: next})
	return next, nil
}

// CurrentSnapshot returns the id of the latest snapshot, zero when none was
// taken.
func (l *Ledger) CurrentSnapshot() (uint64, error) {
	var id uint64
	if _, err := l.st.KVGet(snapshotKey, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// BalanceAt returns the balance addr held when snapshot id was taken.
func (l *Ledger) BalanceAt(addr ethcommon.Address, id uint64) (*big.Int, error) {
	return l.valueAt(accountKey(checkpointPrefix, addr), id, func() (*big.Int, error) {
		return l.BalanceOf(addr)
	})
}

// TotalSupplyAt returns the total supply when snapshot id was taken.
func (l *Ledger) TotalSupplyAt(id uint64) (*big.Int, error) {
	return l.valueAt(supplyCheckpoints, id, l.TotalSupply)
}

func (l *Ledger) valueAt(prefix []byte, id uint64, current func() (*big.Int, error)) (*big.Int, error) {
	latest, err := l.CurrentSnapshot()
	if err != nil {
		return nil, err
	}
	if id == 0 || id > latest {
		return nil, common.WithParams(ErrInvalidSnapshot,
			"id", strconv.FormatUint(id, 10), "current", strconv.FormatUint(latest, 10))
	}
	n, err := l.checkpointCount(prefix)
	if err != nil {
		return nil, err
	}
	var searchErr error
	idx := sort.Search(int(n), func(i int) bool {
		if searchErr != nil {
			return true
		}
		cp, err := l.loadCheckpoint(prefix, uint64(i))
		if err != nil {
			searchErr = err
			return true
		}
		return cp.ID >= id
	})
	if searchErr != nil {
		return nil, searchErr
	}
	if uint64(idx) == n {
		return current()
	}
	cp, err := l.loadCheckpoint(prefix, uint64(idx))
	if err != nil {
		return nil, err
	}
	return cp.Value, nil
}

// recordCheckpoint stores the pre-change value under the current snapshot id
// unless that snapshot already has one.
func (l *Ledger) recordCheckpoint(prefix []byte, before *big.Int) error {
	current, err := l.CurrentSnapshot()
	if err != nil || current == 0 {
		return err
	}
	n, err := l.checkpointCount(prefix)
	if err != nil {
		return err
	}
	if n > 0 {
		last, err := l.loadCheckpoint(prefix, n-1)
		if err != nil {
			return err
		}
		if last.ID >= current {
			return nil
		}
	}
	if err := l.st.KVPut(checkpointEntryKey(prefix, n), checkpoint{ID: current, Value: cloneBig(before)}); err != nil {
		return err
	}
	return l.st.KVPut(checkpointCountKey(prefix), n+1)
}

func (l *Ledger) checkpointCount(prefix []byte) (uint64, error) {
	var n uint64
	if _, err := l.st.KVGet(checkpointCountKey(prefix), &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (l *Ledger) loadCheckpoint(prefix []byte, idx uint64) (checkpoint, error) {
	var cp checkpoint
	ok, err := l.st.KVGet(checkpointEntryKey(prefix, idx), &cp)
	if err != nil {
		return checkpoint{}, err
	}
	if !ok {
		return checkpoint{}, ErrInvalidSnapshot
	}
	return cp, nil
}

func checkpointCountKey(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), "/n"...)
}

func checkpointEntryKey(prefix []byte, idx uint64) []byte {
	return append(append([]byte(nil), prefix...), "/"+strconv.FormatUint(idx, 10)...)
}

package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shopchain/core"
	"shopchain/core/events"
	"shopchain/core/state"
	"shopchain/core/types"
	"shopchain/storage"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := Open(dsn)
	require.NoError(t, err)
	a, err := New(db, nil)
	require.NoError(t, err)
	return a
}

func emit(a *Archive, seq uint64, typ string, attrs map[string]string) {
	a.Emit(events.Committed{
		Seq:       seq,
		Operation: "op",
		At:        time.Unix(1_700_000_000+int64(seq), 0),
		Event:     types.Event{Type: typ, Attributes: attrs},
	})
}

func TestArchiveListsInSequenceOrder(t *testing.T) {
	a := newTestArchive(t)
	emit(a, 2, events.TypeMarketOrderPaid, map[string]string{"id": "7", "totalCents": "1800"})
	emit(a, 1, events.TypeMarketOrderCreated, map[string]string{"id": "7"})
	emit(a, 3, events.TypeTokenTransfer, nil)
	emit(a, 2, events.TypeMarketOrderPaid, map[string]string{"id": "dup"})
	a.Emit(events.TokenSnapshot{ID: 1})

	all, err := a.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, rec := range all {
		require.Equal(t, uint64(i+1), rec.Seq)
	}
	attrs, err := all[1].Attrs()
	require.NoError(t, err)
	require.Equal(t, "1800", attrs["totalCents"])
	require.Equal(t, "7", attrs["id"])

	paid, err := a.List(context.Background(), Filter{Type: events.TypeMarketOrderPaid})
	require.NoError(t, err)
	require.Len(t, paid, 1)

	tail, err := a.List(context.Background(), Filter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, uint64(2), tail[0].Seq)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
	_, err = New(nil, nil)
	require.Error(t, err)
}

func TestArchiveKeepsEventsAcrossNodeRestart(t *testing.T) {
	a := newTestArchive(t)
	db := storage.NewMemDB()
	run := func(typ string) {
		st := state.NewManager(db)
		exec := core.NewExecutor(st, a, nil)
		require.NoError(t, exec.Execute(context.Background(), "op", func() error {
			st.AppendEvent(&types.Event{Type: typ})
			return nil
		}))
	}
	run(events.TypeMarketOrderCreated)
	run(events.TypeMarketOrderPaid)

	all, err := a.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, events.TypeMarketOrderPaid, all[1].Type)
	require.Equal(t, uint64(2), all[1].Seq)
}

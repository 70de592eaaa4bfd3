package eventstream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"shopchain/core/events"
	"shopchain/core/types"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func committed(seq uint64, typ string) events.Committed {
	return events.Committed{
		Seq:       seq,
		Operation: "market_payOrder",
		At:        time.Unix(1_700_000_000, 0),
		Event:     types.Event{Type: typ, Attributes: map[string]string{"id": "1"}},
	}
}

func TestPublisherWritesCommittedEventsInOrder(t *testing.T) {
	w := &fakeWriter{}
	p := NewWithWriter(w, 8, nil)
	p.Emit(committed(1, events.TypeMarketOrderCreated))
	p.Emit(events.TokenSnapshot{ID: 3})
	p.Emit(committed(2, events.TypeMarketOrderPaid))
	require.NoError(t, p.Close())

	require.True(t, w.closed)
	require.Len(t, w.msgs, 2)
	var first, second Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &first))
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &second))
	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, events.TypeMarketOrderPaid, second.Type)
	require.Equal(t, "market_payOrder", second.Operation)
	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, events.TypeMarketOrderPaid, string(w.msgs[1].Key))
}

func TestPublisherSurvivesWriteFailuresAndLateEmits(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := NewWithWriter(w, 1, nil)
	p.Emit(committed(1, events.TypeTokenTransfer))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.NotPanics(t, func() { p.Emit(committed(2, events.TypeTokenTransfer)) })
	require.Empty(t, w.msgs)
}

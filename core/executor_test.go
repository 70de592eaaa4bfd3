package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shopchain/core/state"
	"shopchain/core/types"
	"shopchain/storage"
)

func newTestExecutor(t *testing.T) (*Executor, *state.Manager, *recordingEmitter) {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	rec := &recordingEmitter{}
	return NewExecutor(st, rec, nil), st, rec
}

func TestExecuteCommitsAndNumbersEvents(t *testing.T) {
	exec, st, rec := newTestExecutor(t)
	for i := 0; i < 2; i++ {
		if err := exec.Execute(context.Background(), "put", func() error {
			st.AppendEvent(&types.Event{Type: "test.one"})
			st.AppendEvent(&types.Event{Type: "test.two"})
			return st.KVPut([]byte("k"), uint64(i))
		}); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	if len(rec.committed) != 4 {
		t.Fatalf("expected four committed events, got %d", len(rec.committed))
	}
	for i, c := range rec.committed {
		if c.Seq != uint64(i+1) || c.Operation != "put" {
			t.Fatalf("unexpected committed event %d: %+v", i, c)
		}
	}
	var got uint64
	if ok, err := st.KVGet([]byte("k"), &got); err != nil || !ok || got != 1 {
		t.Fatalf("expected committed value 1, got %d ok=%v err=%v", got, ok, err)
	}
}

func TestExecuteDiscardsFailedOperation(t *testing.T) {
	exec, st, rec := newTestExecutor(t)
	boom := errors.New("boom")
	err := exec.Execute(context.Background(), "fail", func() error {
		st.AppendEvent(&types.Event{Type: "test.lost"})
		if err := st.KVPut([]byte("k"), uint64(9)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(rec.committed) != 0 {
		t.Fatalf("failed operation emitted %d events", len(rec.committed))
	}
	if ok, err := st.KVGet([]byte("k"), nil); err != nil || ok {
		t.Fatalf("failed write leaked: ok=%v err=%v", ok, err)
	}
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := exec.Execute(ctx, "cancelled", func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || ran {
		t.Fatalf("expected cancellation before run, got err=%v ran=%v", err, ran)
	}
}

func TestViewDropsStagedWrites(t *testing.T) {
	exec, st, _ := newTestExecutor(t)
	value, err := Query(exec, func() (uint64, error) {
		return 7, st.KVPut([]byte("scratch"), uint64(7))
	})
	if err != nil || value != 7 {
		t.Fatalf("query: %d %v", value, err)
	}
	if ok, _ := st.KVGet([]byte("scratch"), nil); ok {
		t.Fatalf("view must not persist writes")
	}
}

func TestExecuteSerialisesOperations(t *testing.T) {
	exec, st, rec := newTestExecutor(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(context.Background(), exec, "incr", func() (uint64, error) {
				var n uint64
				if _, err := st.KVGet([]byte("n"), &n); err != nil {
					return 0, err
				}
				n++
				st.AppendEvent(&types.Event{Type: "test.incr"})
				return n, st.KVPut([]byte("n"), n)
			})
		}()
	}
	wg.Wait()
	var n uint64
	if _, err := st.KVGet([]byte("n"), &n); err != nil || n != 16 {
		t.Fatalf("expected 16 increments, got %d err=%v", n, err)
	}
	if len(rec.committed) != 16 || rec.committed[15].Seq != 16 {
		t.Fatalf("unexpected committed sequence: %d events", len(rec.committed))
	}
}

func TestEventSequenceSurvivesRestart(t *testing.T) {
	db := storage.NewMemDB()
	first := &recordingEmitter{}
	st := state.NewManager(db)
	exec := NewExecutor(st, first, nil)
	if err := exec.Execute(context.Background(), "before", func() error {
		st.AppendEvent(&types.Event{Type: "test.before"})
		return nil
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	second := &recordingEmitter{}
	st = state.NewManager(db)
	exec = NewExecutor(st, second, nil)
	if err := exec.Execute(context.Background(), "noop", func() error { return nil }); err != nil {
		t.Fatalf("execute without events: %v", err)
	}
	if err := exec.Execute(context.Background(), "after", func() error {
		st.AppendEvent(&types.Event{Type: "test.after.one"})
		st.AppendEvent(&types.Event{Type: "test.after.two"})
		return nil
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(second.committed) != 2 || second.committed[0].Seq != 2 || second.committed[1].Seq != 3 {
		t.Fatalf("sequence must continue after restart: %+v", second.committed)
	}
}

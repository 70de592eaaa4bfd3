package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopchain/core/events"
	"shopchain/core/state"
	"shopchain/native/common"
	"shopchain/observability"
	"shopchain/observability/logging"
	telemetry "shopchain/observability/otel"
)

// eventSeqKey holds the sequence number of the last committed event so
// numbering continues across restarts.
var eventSeqKey = []byte("executor/eventSeq")

// Executor runs ledger operations one at a time. Each operation stages its
// writes in the state manager; the executor commits them in one batch when
// the operation returns nil and discards them otherwise. Events reach the
// emitter only after their operation committed.
type Executor struct {
	mu      sync.Mutex
	st      *state.Manager
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics interface {
		Observe(operation, outcome string, duration time.Duration)
		Waiting(delta float64)
	}
	seq   uint64
	nowFn func() time.Time
}

func NewExecutor(st *state.Manager, emitter events.Emitter, logger *slog.Logger) *Executor {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		st:      st,
		emitter: emitter,
		logger:  logger.With("component", "executor"),
		tracer:  telemetry.Tracer("executor"),
		metrics: observability.Operations(),
		nowFn:   time.Now,
	}
	if _, err := st.KVGet(eventSeqKey, &e.seq); err != nil {
		e.logger.Error("load event sequence", "error", err)
	}
	return e
}

// Execute runs fn as the single active operation. A cancelled context is
// honoured only while waiting; once fn starts it runs to completion.
func (e *Executor) Execute(ctx context.Context, operation string, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.metrics.Waiting(1)
	e.mu.Lock()
	e.metrics.Waiting(-1)
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	_, span := e.tracer.Start(ctx, operation, trace.WithAttributes(attribute.String("shop.operation", operation)))
	defer span.End()
	start := time.Now()

	if err := fn(); err != nil {
		e.st.Discard()
		e.metrics.Observe(operation, "reverted", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		attrs := append([]any{"operation", operation, "error", err.Error()}, logging.Attrs(common.Params(err))...)
		e.logger.Info("operation reverted", attrs...)
		return err
	}

	if pending := uint64(len(e.st.Events())); pending > 0 {
		if err := e.st.KVPut(eventSeqKey, e.seq+pending); err != nil {
			e.st.Discard()
			e.metrics.Observe(operation, "failed", time.Since(start))
			span.SetStatus(codes.Error, "sequence update failed")
			return fmt.Errorf("commit %s: %w", operation, err)
		}
	}
	committed, err := e.st.Commit()
	if err != nil {
		e.st.Discard()
		e.metrics.Observe(operation, "failed", time.Since(start))
		span.SetStatus(codes.Error, "commit failed")
		e.logger.Error("commit failed", "operation", operation, "error", err)
		return fmt.Errorf("commit %s: %w", operation, err)
	}
	elapsed := time.Since(start)
	e.metrics.Observe(operation, "committed", elapsed)
	span.SetAttributes(attribute.Int("shop.events", len(committed)))

	at := e.nowFn()
	for _, evt := range committed {
		e.seq++
		e.emitter.Emit(events.Committed{Seq: e.seq, Operation: operation, At: at, Event: evt})
	}
	e.logger.Debug("operation committed", "operation", operation, "events", len(committed), "duration", elapsed)
	return nil
}

// View runs a read-only function under the executor lock. Anything fn staged
// is dropped.
func (e *Executor) View(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.st.Discard()
	return fn()
}

// Do runs fn through Execute and returns its result. The zero value is
// returned when the operation fails.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func() (T, error)) (T, error) {
	var out T
	err := e.Execute(ctx, operation, func() error {
		res, err := fn()
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Query runs fn through View and returns its result.
func Query[T any](e *Executor, fn func() (T, error)) (T, error) {
	var out T
	err := e.View(func() error {
		res, err := fn()
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// Package eventstream publishes committed ledger events to Kafka.
package eventstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"shopchain/core/events"
)

const defaultBuffer = 1024

// Writer is the subset of kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	Buffer   int
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Operation  string            `json:"operation"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	At         time.Time         `json:"at"`
}

// Publisher implements events.Emitter. Emit never blocks the ledger: events
// are queued and written by a single worker, and dropped when the queue is
// full.
type Publisher struct {
	writer Writer
	logger *slog.Logger
	queue  chan kafka.Message

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New returns a publisher backed by a kafka.Writer, which connects lazily on
// the first write.
func New(cfg Config, logger *slog.Logger) *Publisher {
	transport := &kafka.Transport{ClientID: cfg.ClientID}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
	}
	return NewWithWriter(writer, cfg.Buffer, logger)
}

func NewWithWriter(w Writer, buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		writer: w,
		logger: logger.With("component", "eventstream"),
		queue:  make(chan kafka.Message, buffer),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Emit implements events.Emitter. Only committed events are published.
func (p *Publisher) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok {
		return
	}
	body, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Seq:        committed.Seq,
		Operation:  committed.Operation,
		Type:       committed.Type,
		Attributes: committed.Attributes,
		At:         committed.At.UTC(),
	})
	if err != nil {
		p.logger.Error("encode event", "type", committed.Type, "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(committed.Type), Value: body, Time: committed.At}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- msg:
	default:
		p.logger.Warn("event queue full, dropping", "type", committed.Type, "seq", committed.Seq)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.logger.Error("publish event", "key", string(msg.Key), "error", err)
		}
		cancel()
	}
}

// Close flushes queued events and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
	return p.writer.Close()
}

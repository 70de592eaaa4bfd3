// Package archive stores committed ledger events in a SQL database for
// audit queries.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopchain/core/events"
)

const maxListLimit = 500

// Record is one archived event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex"`
	Operation  string    `gorm:"index"`
	Type       string    `gorm:"index"`
	Attributes string
	At         time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// Attrs decodes the stored attribute map.
func (r Record) Attrs() (map[string]string, error) {
	out := make(map[string]string)
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Open connects to dsn. postgres:// and postgresql:// URLs use the Postgres
// driver; anything else is treated as a SQLite path or URI.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("archive: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// Archive implements events.Emitter by inserting every committed event.
type Archive struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, log *slog.Logger) (*Archive, error) {
	if db == nil {
		return nil, errors.New("archive: db required")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Archive{db: db, logger: log.With("component", "archive")}, nil
}

// Emit implements events.Emitter. Failures are logged; the ledger has
// already committed.
func (a *Archive) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok {
		return
	}
	if err := a.Insert(context.Background(), committed); err != nil {
		a.logger.Error("archive event", "seq", committed.Seq, "type", committed.Type, "error", err)
	}
}

// Insert stores one committed event. Re-inserting a sequence number is a
// no-op.
func (a *Archive) Insert(ctx context.Context, c events.Committed) error {
	attrs, err := json.Marshal(c.Attributes)
	if err != nil {
		return err
	}
	var existing int64
	if err := a.db.WithContext(ctx).Model(&Record{}).Where("seq = ?", c.Seq).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	rec := Record{
		ID:         uuid.New(),
		Seq:        c.Seq,
		Operation:  c.Operation,
		Type:       c.Type,
		Attributes: string(attrs),
		At:         c.At.UTC(),
	}
	return a.db.WithContext(ctx).Create(&rec).Error
}

// Filter narrows List results.
type Filter struct {
	Type     string
	AfterSeq uint64
	Limit    int
}

// List returns archived events in sequence order.
func (a *Archive) List(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	q := a.db.WithContext(ctx).Model(&Record{}).Where("seq > ?", f.AfterSeq)
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where("type = ?", t)
	}
	var out []Record
	if err := q.Order("seq asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

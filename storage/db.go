package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
)

// ErrNotFound is returned by Get when the key has never been written or was
// deleted.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store. The ledger commits
// every settled operation through a Batch so a crash never leaves half of an
// operation on disk.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	NewBatch() Batch
	Close() error
}

// Batch accumulates writes that are applied atomically by Write.
type Batch interface {
	Put(key []byte, value []byte)
	Delete(key []byte)
	Len() int
	Write() error
}

// --- In-Memory DB (for testing) ---

// MemDB keeps data in a goleveldb skiplist. It is used by tests and by nodes
// started without a data directory.
type MemDB struct {
	mu sync.RWMutex
	db *memdb.DB
}

func NewMemDB() *MemDB {
	return &MemDB{db: memdb.New(comparer.DefaultComparer, 0)}
}

func (m *MemDB) Put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put(key, value)
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, err := m.db.Get(key)
	if errors.Is(err, memdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), value...), nil
}

func (m *MemDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.Contains(key), nil
}

func (m *MemDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.db.Delete(key)
	if errors.Is(err, memdb.ErrNotFound) {
		return nil
	}
	return err
}

// NewBatch returns a batch replayed into the skiplist under a single lock.
func (m *MemDB) NewBatch() Batch {
	return &memBatch{db: m}
}

// Close satisfies the Database interface for MemDB.
func (m *MemDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db.Reset()
	return nil
}

type memBatch struct {
	db    *MemDB
	batch leveldb.Batch
}

func (b *memBatch) Put(key, value []byte) { b.batch.Put(key, value) }
func (b *memBatch) Delete(key []byte)     { b.batch.Delete(key) }
func (b *memBatch) Len() int              { return b.batch.Len() }

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	replay := &memReplay{db: b.db.db}
	if err := b.batch.Replay(replay); err != nil {
		return err
	}
	return replay.err
}

// memReplay adapts leveldb.BatchReplay onto the skiplist.
type memReplay struct {
	db  *memdb.DB
	err error
}

func (r *memReplay) Put(key, value []byte) {
	if r.err != nil {
		return
	}
	r.err = r.db.Put(key, value)
}

func (r *memReplay) Delete(key []byte) {
	if r.err != nil {
		return
	}
	if err := r.db.Delete(key); err != nil && !errors.Is(err, memdb.ErrNotFound) {
		r.err = err
	}
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (l *LevelDB) Put(key []byte, value []byte) error {
	return l.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

func (l *LevelDB) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

// Close closes the database connection.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Put(key, value []byte) { b.batch.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.batch.Delete(key) }
func (b *levelBatch) Len() int              { return b.batch.Len() }
func (b *levelBatch) Write() error          { return b.db.Write(b.batch, nil) }

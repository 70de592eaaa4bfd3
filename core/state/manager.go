package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"shopchain/core/types"
	"shopchain/storage"
)

// Manager stages reads and writes for a single ledger operation on top of the
// backing database. Nothing reaches the database until Commit; Discard and
// RevertTo undo staged work so a failed operation leaves no trace.
//
// Manager is not safe for concurrent use. The executor serialises access.
type Manager struct {
	db      storage.Database
	dirty   map[string]entry
	journal []journalEntry
	events  []types.Event
}

type entry struct {
	data    []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    entry
	existed bool
}

// Checkpoint marks a position in the staged change set.
type Checkpoint struct {
	journal int
	events  int
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]entry)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) read(hashed []byte) ([]byte, error) {
	if e, ok := m.dirty[string(hashed)]; ok {
		if e.deleted {
			return nil, nil
		}
		return e.data, nil
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) write(hashed []byte, e entry) {
	k := string(hashed)
	prev, existed := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, existed: existed})
	m.dirty[k] = e
}

// Checkpoint returns a marker that RevertTo can roll back to.
func (m *Manager) Checkpoint() Checkpoint {
	return Checkpoint{journal: len(m.journal), events: len(m.events)}
}

// RevertTo undoes every staged write and event recorded after cp.
func (m *Manager) RevertTo(cp Checkpoint) {
	for i := len(m.journal) - 1; i >= cp.journal; i-- {
		j := m.journal[i]
		if j.existed {
			m.dirty[j.key] = j.prev
		} else {
			delete(m.dirty, j.key)
		}
	}
	m.journal = m.journal[:cp.journal]
	if cp.events < len(m.events) {
		m.events = m.events[:cp.events]
	}
}

// Commit writes all staged changes in one batch and returns the events
// recorded by the committed operation.
func (m *Manager) Commit() ([]types.Event, error) {
	if len(m.dirty) > 0 {
		keys := make([]string, 0, len(m.dirty))
		for k := range m.dirty {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		batch := m.db.NewBatch()
		for _, k := range keys {
			e := m.dirty[k]
			if e.deleted {
				batch.Delete([]byte(k))
				continue
			}
			batch.Put([]byte(k), e.data)
		}
		if err := batch.Write(); err != nil {
			return nil, fmt.Errorf("state: commit: %w", err)
		}
	}
	events := m.events
	m.reset()
	return events, nil
}

// Discard drops every staged change.
func (m *Manager) Discard() {
	m.reset()
}

// Pending reports whether the manager holds uncommitted writes or events.
func (m *Manager) Pending() bool {
	return len(m.dirty) > 0 || len(m.events) > 0
}

func (m *Manager) reset() {
	m.dirty = make(map[string]entry)
	m.journal = nil
	m.events = nil
}

// AppendEvent records an event alongside the staged writes. Reverted or
// discarded operations drop their events.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	attrs := make(map[string]string, len(evt.Attributes))
	for k, v := range evt.Attributes {
		attrs[k] = v
	}
	m.events = append(m.events, types.Event{Type: evt.Type, Attributes: attrs})
}

// Events returns the events staged so far.
func (m *Manager) Events() []types.Event {
	out := make([]types.Event, len(m.events))
	copy(out, m.events)
	return out
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.write(kvKey(key), entry{data: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.write(kvKey(key), entry{deleted: true})
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.read(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	m.write(hashed, entry{data: encoded})
	return nil
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

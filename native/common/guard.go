package common

import (
	"errors"
	"strings"
)

// ErrModulePaused is returned by Guard while the named module is paused.
var ErrModulePaused = errors.New("paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return WithParams(ErrModulePaused, "module", module)
	}
	return nil
}

// PauseStore is the state surface used to persist pause flags.
type PauseStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Pauses keeps per-module pause flags in state so that a pause is reverted
// together with the operation that set it.
type Pauses struct {
	st PauseStore
}

func NewPauses(st PauseStore) *Pauses { return &Pauses{st: st} }

func pauseKey(module string) []byte {
	return []byte("pause/" + strings.ToLower(strings.TrimSpace(module)))
}

// IsPaused implements PauseView. Unreadable flags are reported as paused.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil || p.st == nil {
		return false
	}
	var paused bool
	ok, err := p.st.KVGet(pauseKey(module), &paused)
	if err != nil {
		return true
	}
	return ok && paused
}

func (p *Pauses) SetPaused(module string, paused bool) error {
	if p == nil || p.st == nil {
		return errors.New("pauses: state unavailable")
	}
	return p.st.KVPut(pauseKey(module), paused)
}

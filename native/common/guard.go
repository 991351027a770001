package common

import (
	"errors"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module flow is currently paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name always passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// PauseSet is a thread-safe PauseView with toggles, used by the daemon to
// expose administrative pause control.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSet returns an empty pause set; nothing is paused initially.
func NewPauseSet() *PauseSet {
	return &PauseSet{paused: make(map[string]bool)}
}

// Pause marks the named module flow as paused.
func (p *PauseSet) Pause(module string) {
	if p == nil || module == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = true
}

// Resume clears the pause flag for the named module flow.
func (p *PauseSet) Resume(module string) {
	if p == nil || module == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.paused, module)
}

// IsPaused implements the PauseView interface.
func (p *PauseSet) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

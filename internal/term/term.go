//go:build !windows
// +build !windows

package term

import (
	"golang.org/x/term"
)

// Manager captures a terminal's attribute set once and can flip the terminal
// into raw mode and back. When the initial capture fails (the fd is not
// attended by a terminal, as happens on some guest consoles) every method
// degrades to a no-op, so callers never need to branch on terminal presence.
type Manager struct {
	fd       int
	snapshot *term.State
	restored bool
}

func NewManager(fd int) *Manager {
	return &Manager{fd: fd}
}

// Capture records the fd's current attribute set and reports success.
// Failure is not fatal for a relay session: input stays buffered by the
// host console instead of arriving keystroke-by-keystroke.
func (m *Manager) Capture() bool {
	st, err := term.GetState(m.fd)
	if err != nil {
		return false
	}
	m.snapshot = st
	return true
}

// Captured reports whether a snapshot is held and not yet consumed.
func (m *Manager) Captured() bool {
	return m.snapshot != nil && !m.restored
}

// SetRaw applies a raw attribute set (no echo, no canonical buffering, no
// signal characters). No-op when capture failed.
func (m *Manager) SetRaw() error {
	if m.snapshot == nil {
		return nil
	}
	_, err := term.MakeRaw(m.fd)
	return err
}

// Restore reapplies the captured snapshot. The snapshot is consumed on the
// first call; later calls are no-ops, so teardown paths can call it
// unconditionally.
func (m *Manager) Restore() error {
	if m.snapshot == nil || m.restored {
		return nil
	}
	m.restored = true
	return term.Restore(m.fd, m.snapshot)
}

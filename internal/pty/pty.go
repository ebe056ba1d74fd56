//go:build !windows
// +build !windows

package pty

import (
	"os"

	creackpty "github.com/creack/pty"
)

// Master wraps the controlling side of an allocated pseudo-terminal pair.
type Master struct {
	f *os.File
}

// Open allocates a new PTY pair and sizes it to rows x cols. The subordinate
// side is returned open; the caller hands it to the child process and closes
// its own copy once the child has started.
func Open(rows, cols int) (*Master, *os.File, error) {
	master, slave, err := creackpty.Open()
	if err != nil {
		return nil, nil, err
	}
	m := &Master{f: master}
	if err := m.SetSize(rows, cols); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, nil, err
	}
	return m, slave, nil
}

func (m *Master) Read(b []byte) (int, error)  { return m.f.Read(b) }
func (m *Master) Write(b []byte) (int, error) { return m.f.Write(b) }
func (m *Master) Close() error                { return m.f.Close() }
func (m *Master) Fd() uintptr                 { return m.f.Fd() }
func (m *Master) File() *os.File              { return m.f }

func (m *Master) SetSize(rows, cols int) error {
	return creackpty.Setsize(m.f, &creackpty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Size reports the PTY's current dimensions as seen by the child.
func (m *Master) Size() (rows, cols int, err error) {
	ws, err := creackpty.GetsizeFull(m.f)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Rows), int(ws.Cols), nil
}

//go:build !windows
// +build !windows

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"vmrelay/internal/pty"
)

// FallbackExitCode is reported when the child was killed by a signal or the
// session never got as far as running it.
const FallbackExitCode = 1

// Child supervises exactly one process attached to the subordinate side of
// a freshly allocated PTY. The exit observer publishes termination through
// the status/exited pair; everything else is driven from the relay loop.
type Child struct {
	defaultCommand string

	Master *pty.Master
	pid    int

	status atomic.Int32
	exited atomic.Bool

	sigc    chan os.Signal
	watched chan struct{}
	reaped  bool
}

// New returns an unstarted supervisor. defaultCommand is executed when
// Spawn receives no command of its own.
func New(defaultCommand string) *Child {
	return &Child{defaultCommand: defaultCommand}
}

// WatchExit installs the asynchronous child-exit observer. It must run
// before Spawn so a child that dies immediately is still caught. The
// observer only performs a non-blocking reap and stores the result; it
// never touches the relay's buffers or descriptors.
func (c *Child) WatchExit() {
	c.sigc = make(chan os.Signal, 1)
	c.watched = make(chan struct{})
	signal.Notify(c.sigc, unix.SIGCHLD)
	go func() {
		defer close(c.watched)
		for range c.sigc {
			var ws unix.WaitStatus
			pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
			for err == unix.EINTR {
				pid, err = unix.Wait4(-1, &ws, unix.WNOHANG, nil)
			}
			if err == nil && pid > 0 {
				// Status is stored before the flag so a reader that
				// observes exited==true always sees the final status.
				c.status.Store(int32(ws))
				c.exited.Store(true)
				return
			}
			// SIGCHLD without a terminated child (stop/continue); keep
			// listening.
		}
	}()
}

// Spawn allocates a rows x cols PTY and starts command with args as a
// session leader on its subordinate side. An empty command falls back to
// the configured default. Allocation or start failure is the only error
// this package surfaces.
func (c *Child) Spawn(command string, args []string, rows, cols int) error {
	if command == "" {
		command = c.defaultCommand
		args = nil
	}

	master, slave, err := pty.Open(rows, cols)
	if err != nil {
		return fmt.Errorf("pty allocation: %w", err)
	}

	cmd := exec.Command(command, args...)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
	if err := cmd.Start(); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return fmt.Errorf("starting %s: %w", command, err)
	}
	_ = slave.Close()

	c.Master = master
	c.pid = cmd.Process.Pid
	return nil
}

// Pid returns the child's process id, or 0 before Spawn succeeds.
func (c *Child) Pid() int { return c.pid }

// Exited reports whether the exit observer has seen the child terminate.
// Once true it stays true.
func (c *Child) Exited() bool { return c.exited.Load() }

// ReapIfNeeded stops the exit observer and, when the observer never fired,
// blocks until the specific child has terminated so no zombie remains.
// Safe to call when Spawn failed, and safe to call more than once.
func (c *Child) ReapIfNeeded() {
	if c.sigc != nil {
		signal.Stop(c.sigc)
		close(c.sigc)
		c.sigc = nil
		<-c.watched
	}
	if c.reaped || c.exited.Load() || c.pid == 0 {
		c.reaped = true
		return
	}
	var ws unix.WaitStatus
	for {
		pid, err := unix.Wait4(c.pid, &ws, 0, nil)
		if err == unix.EINTR {
			continue
		}
		if err == nil && pid == c.pid {
			c.status.Store(int32(ws))
			c.exited.Store(true)
		}
		break
	}
	c.reaped = true
}

// ExitCode maps the child's wait status to the relay's own exit status:
// the child's code for a normal exit, FallbackExitCode for a signal death
// or a session that never ran a child.
func (c *Child) ExitCode() int {
	if !c.exited.Load() {
		return FallbackExitCode
	}
	ws := unix.WaitStatus(c.status.Load())
	if ws.Exited() {
		return ws.ExitStatus()
	}
	return FallbackExitCode
}

//go:build !windows
// +build !windows

package relay

import (
	"golang.org/x/sys/unix"

	"vmrelay/internal/config"
	"vmrelay/internal/logging"
	"vmrelay/internal/supervisor"
	"vmrelay/internal/term"
)

const (
	// pollTimeoutMs bounds each readiness wait so the child-exit flag is
	// observed promptly even when both descriptors stay quiet.
	pollTimeoutMs = 200

	bufSize = 4096
)

type state int

const (
	stateRunning state = iota
	stateDraining
	stateTerminated
)

// Session relays bytes between a console (in/out descriptors) and the PTY
// master of a supervised child. Input has the console's CR->LF substitution
// reversed so the wrapped application sees Enter as carriage return; output
// passes through untouched.
type Session struct {
	in  int
	out int
	log *logging.Logger
}

// New wires a session to the given console descriptors. Callers normally
// pass the process's own stdin and stdout.
func New(in, out int) *Session {
	return &Session{
		in:  in,
		out: out,
		log: logging.WithFields(map[string]interface{}{"component": "relay"}),
	}
}

// Run executes one full session: spawn the child against a fresh PTY, relay
// until the loop ends, drain, then tear down. The return value is the exit
// status the relay process should report. Terminal attributes are restored
// and the child reaped on every path out of the loop.
func (s *Session) Run(cfg *config.Config, command string, args []string) int {
	child := supervisor.New(cfg.DefaultCommand)

	// The observer must be in place before the fork so a child that dies
	// immediately is still caught.
	child.WatchExit()

	if err := child.Spawn(command, args, cfg.Rows, cfg.Cols); err != nil {
		s.log.Error("session setup failed", map[string]interface{}{"error": err.Error()})
		child.ReapIfNeeded()
		return child.ExitCode()
	}
	s.log.Debug("child started", map[string]interface{}{
		"pid": child.Pid(), "rows": cfg.Rows, "cols": cfg.Cols,
	})

	// Best-effort raw mode on the console. The guest console may refuse;
	// input then stays line-buffered but Enter still submits thanks to
	// the LF->CR rewrite.
	tm := term.NewManager(s.in)
	if tm.Capture() {
		if err := tm.SetRaw(); err != nil {
			s.log.Warn("raw mode not available", map[string]interface{}{"error": err.Error()})
		}
	}

	master := int(child.Master.Fd())
	_ = unix.SetNonblock(master, true)

	buf := make([]byte, bufSize)
	st := stateRunning
	for st == stateRunning {
		st = s.step(child, master, buf)
	}

	s.drain(master, buf)
	_ = child.Master.Close()

	_ = tm.Restore()
	child.ReapIfNeeded()
	code := child.ExitCode()
	s.log.Debug("session ended", map[string]interface{}{"pid": child.Pid(), "code": code})
	return code
}

// step performs one RUNNING iteration: wait for readiness with a bounded
// timeout, move input and output, and decide whether to keep running.
func (s *Session) step(child *supervisor.Child, master int, buf []byte) state {
	if child.Exited() {
		return stateDraining
	}

	fds := []unix.PollFd{
		{Fd: int32(s.in), Events: unix.POLLIN},
		{Fd: int32(master), Events: unix.POLLIN},
	}
	n, err := unix.Poll(fds, pollTimeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return stateRunning
		}
		return stateDraining
	}
	if n == 0 {
		return stateRunning
	}

	// Console input -> PTY master, with the line-ending correction.
	if fds[0].Revents&unix.POLLIN != 0 {
		rn, rerr := readRetry(s.in, buf)
		if rn <= 0 || rerr != nil {
			return stateDraining
		}
		chunk := buf[:rn]
		lfToCR(chunk)
		if werr := writeFull(master, chunk); werr != nil {
			return stateDraining
		}
	}

	// PTY master -> console output, verbatim.
	if fds[1].Revents&unix.POLLIN != 0 {
		rn, rerr := unix.Read(master, buf)
		switch {
		case rn > 0:
			if werr := writeFull(s.out, buf[:rn]); werr != nil {
				return stateDraining
			}
		case rerr == unix.EAGAIN || rerr == unix.EINTR:
			// spurious readiness; keep going
		case rerr != nil:
			// EIO here just means the subordinate side went away as the
			// child exited.
			return stateDraining
		default: // rn == 0: EOF
			return stateDraining
		}
	}

	if fds[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
		return stateDraining
	}
	if fds[1].Revents&unix.POLLHUP != 0 {
		return stateDraining
	}
	// POLLERR on the master alone is normal while the child is exiting.

	return stateRunning
}

// drain forwards whatever the master still holds to the console, without
// blocking, until no more data is immediately available.
func (s *Session) drain(master int, buf []byte) {
	for {
		n, err := unix.Read(master, buf)
		if n > 0 {
			if writeFull(s.out, buf[:n]) != nil {
				return
			}
			continue
		}
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// lfToCR rewrites every line feed in b to a carriage return, in place. The
// guest console's ICRNL turns Enter's CR into LF before the relay sees it;
// the wrapped application treats CR as submit, so the substitution is
// reversed here. All other bytes pass through unchanged.
func lfToCR(b []byte) {
	for i, c := range b {
		if c == '\n' {
			b[i] = '\r'
		}
	}
}

// readRetry reads from fd, retrying reads interrupted by unrelated signals.
func readRetry(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// writeFull writes all of p to fd, riding out short writes, EINTR, and
// momentary EAGAIN on the non-blocking master.
func writeFull(fd int, p []byte) error {
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		if n > 0 {
			p = p[n:]
			continue
		}
		switch err {
		case unix.EINTR:
		case unix.EAGAIN:
			pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
			_, _ = unix.Poll(pfd, pollTimeoutMs)
		default:
			return err
		}
	}
	return nil
}

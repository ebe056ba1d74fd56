//go:build !windows
// +build !windows

package supervisor

import (
	"fmt"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func waitExited(t *testing.T, c *Child, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if c.Exited() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("child %d not observed exited within %v", c.Pid(), within)
}

func spawnShell(t *testing.T, script string) *Child {
	t.Helper()
	c := New("/bin/true")
	c.WatchExit()
	if err := c.Spawn("/bin/sh", []string{"-c", script}, 24, 80); err != nil {
		c.ReapIfNeeded()
		t.Skipf("cannot spawn on pty in this environment: %v", err)
	}
	t.Cleanup(func() {
		if c.Master != nil {
			c.Master.Close()
		}
		c.ReapIfNeeded()
	})
	return c
}

func TestExitCodePropagated(t *testing.T) {
	for _, code := range []int{0, 1, 7, 42, 255} {
		c := spawnShell(t, fmt.Sprintf("exit %d", code))
		waitExited(t, c, 3*time.Second)
		c.ReapIfNeeded()
		if got := c.ExitCode(); got != code {
			t.Errorf("exit %d: ExitCode() = %d", code, got)
		}
	}
}

func TestSignalDeathYieldsFallback(t *testing.T) {
	c := spawnShell(t, "kill -TERM $$")
	waitExited(t, c, 3*time.Second)
	c.ReapIfNeeded()
	if got := c.ExitCode(); got != FallbackExitCode {
		t.Fatalf("signal death: ExitCode() = %d, want %d", got, FallbackExitCode)
	}
}

func TestReapIfNeededBlocksUntilExit(t *testing.T) {
	c := New("/bin/true")
	c.WatchExit()
	if err := c.Spawn("/bin/sh", []string{"-c", "sleep 0.2; exit 9"}, 24, 80); err != nil {
		c.ReapIfNeeded()
		t.Skipf("cannot spawn on pty: %v", err)
	}
	defer c.Master.Close()

	// Do not wait for the observer; teardown must still reap.
	c.ReapIfNeeded()
	if !c.Exited() {
		t.Fatalf("child not reaped by teardown")
	}
	if got := c.ExitCode(); got != 9 {
		t.Fatalf("ExitCode() = %d, want 9", got)
	}
	// Second call is a no-op.
	c.ReapIfNeeded()

	// No zombie: a further wait on the pid must fail with ECHILD.
	var ws unix.WaitStatus
	_, err := unix.Wait4(c.Pid(), &ws, unix.WNOHANG, nil)
	if err != unix.ECHILD {
		t.Fatalf("expected ECHILD after reap, got %v", err)
	}
}

func TestDefaultCommandSubstitution(t *testing.T) {
	c := New("/bin/true")
	c.WatchExit()
	if err := c.Spawn("", nil, 24, 80); err != nil {
		c.ReapIfNeeded()
		t.Skipf("cannot spawn on pty: %v", err)
	}
	defer c.Master.Close()
	waitExited(t, c, 3*time.Second)
	c.ReapIfNeeded()
	if got := c.ExitCode(); got != 0 {
		t.Fatalf("default command exit = %d", got)
	}
}

func TestSpawnFailureSurfacesError(t *testing.T) {
	c := New("/bin/true")
	c.WatchExit()
	err := c.Spawn("/nonexistent/definitely-not-a-binary", nil, 24, 80)
	c.ReapIfNeeded()
	if err == nil {
		t.Fatalf("expected spawn error for missing binary")
	}
	if got := c.ExitCode(); got != FallbackExitCode {
		t.Fatalf("setup failure ExitCode() = %d, want %d", got, FallbackExitCode)
	}
}

func TestPTYSizeVisibleToChild(t *testing.T) {
	c := New("/bin/true")
	c.WatchExit()
	if err := c.Spawn("/bin/sh", []string{"-c", "sleep 0.5"}, 50, 120); err != nil {
		c.ReapIfNeeded()
		t.Skipf("cannot spawn on pty: %v", err)
	}
	defer c.Master.Close()
	defer c.ReapIfNeeded()

	rows, cols, err := c.Master.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if rows != 50 || cols != 120 {
		t.Fatalf("pty sized %dx%d, want 50x120", rows, cols)
	}
}

package ongoing

import (
	"fmt"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// WakeLock keeps the machine awake while a session runs.
type WakeLock interface {
	Acquire() error
	Release() error
}

type NopWakeLock struct{}

func (NopWakeLock) Acquire() error { return nil }
func (NopWakeLock) Release() error { return nil }

// wakeScope makes acquire and release idempotent so every path that ends
// a running session can release unconditionally.
type wakeScope struct {
	lock WakeLock
	log  *zap.Logger

	mu   sync.Mutex
	held bool
}

func (w *wakeScope) acquire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.held {
		return
	}
	if err := w.lock.Acquire(); err != nil {
		w.log.Warn("acquire wake lock", zap.Error(err))
		return
	}
	w.held = true
}

func (w *wakeScope) release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.held {
		return
	}
	if err := w.lock.Release(); err != nil {
		w.log.Warn("release wake lock", zap.Error(err))
	}
	w.held = false
}

// CommandWakeLock holds the lock by keeping a child process alive, e.g.
// systemd-inhibit --what=idle sleep infinity, or caffeinate -i on macOS.
type CommandWakeLock struct {
	Name string
	Args []string

	cmd *exec.Cmd
}

func (c *CommandWakeLock) Acquire() error {
	if c.cmd != nil {
		return nil
	}
	cmd := exec.Command(c.Name, c.Args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.Name, err)
	}
	c.cmd = cmd
	return nil
}

func (c *CommandWakeLock) Release() error {
	if c.cmd == nil {
		return nil
	}
	cmd := c.cmd
	c.cmd = nil
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("stop %s: %w", c.Name, err)
	}
	_ = cmd.Wait()
	return nil
}

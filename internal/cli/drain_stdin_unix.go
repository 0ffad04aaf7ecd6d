//go:build !windows
// +build !windows

package cli

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

// drainStdin discards bytes buffered on stdin by interactive prompt
// rendering (cursor position reports and the like) so they do not leak
// into the next prompt.
func drainStdin() {
	fd := int(os.Stdin.Fd())
	if err := syscall.SetNonblock(fd, true); err != nil {
		stdinReader.Reset(os.Stdin)
		return
	}
	defer func() {
		_ = syscall.SetNonblock(fd, false)
		stdinReader.Reset(os.Stdin)
	}()

	buf := make([]byte, 256)
	deadline := time.Now().Add(80 * time.Millisecond)
	for time.Now().Before(deadline) {
		n, err := syscall.Read(fd, buf)
		if n > 0 {
			deadline = time.Now().Add(80 * time.Millisecond)
			continue
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		break
	}
}

// restoreTTYOnExit puts the terminal back into a usable state before an
// abrupt exit from a signal handler, where defers never run.
func restoreTTYOnExit() {
	fd := int(os.Stdin.Fd())
	_ = syscall.SetNonblock(fd, false)
	stdinReader.Reset(os.Stdin)

	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	_ = cmd.Run()
}

//go:build !windows

package server

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child into its own process group, so signals
// reach the whole tree it spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// processGroupID returns the child's process group. With Setpgid the
// group id equals the child's pid.
func processGroupID(cmd *exec.Cmd) int {
	if cmd.Process == nil {
		return 0
	}

	return cmd.Process.Pid
}

// interruptTree delivers SIGINT to the whole process group.
func interruptTree(cmd *exec.Cmd, pgid int) {
	if pgid > 0 {
		if err := unix.Kill(-pgid, unix.SIGINT); err == nil {
			return
		}
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(unix.SIGINT)
	}
}

// killTree delivers SIGKILL to the group, falling back to a process-tree
// walk when the group signal cannot be sent.
func killTree(cmd *exec.Cmd, pgid int) {
	if pgid > 0 {
		if err := unix.Kill(-pgid, unix.SIGKILL); err == nil {
			return
		}
	}

	if cmd.Process != nil {
		killDescendants(cmd.Process.Pid)
		_ = cmd.Process.Kill()
	}
}

//go:build windows

package server

import "os/exec"

// setProcessGroup is a no-op on Windows; teardown walks the process tree
// instead of signaling a group.
func setProcessGroup(_ *exec.Cmd) {}

func processGroupID(_ *exec.Cmd) int {
	return 0
}

// interruptTree has no graceful equivalent of SIGINT for a detached
// console child, so it goes straight to the tree kill.
func interruptTree(cmd *exec.Cmd, pgid int) {
	killTree(cmd, pgid)
}

func killTree(cmd *exec.Cmd, _ int) {
	if cmd.Process == nil {
		return
	}

	killDescendants(cmd.Process.Pid)
	_ = cmd.Process.Kill()
}

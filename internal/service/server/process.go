package server

import (
	"os"
	"os/exec"
	"time"

	ps "github.com/mitchellh/go-ps"
)

// shutdownGrace is how long a child gets to exit after the interrupt
// before it is killed.
const shutdownGrace = 10 * time.Second

// terminateTree asks the child's process tree to exit, waits out the
// grace period and kills whatever is left. It returns once the child has
// been reaped.
func terminateTree(cmd *exec.Cmd, pgid int, done <-chan struct{}) {
	interruptTree(cmd, pgid)

	select {
	case <-done:
		return
	case <-time.After(shutdownGrace):
	}

	killTree(cmd, pgid)

	<-done
}

// killDescendants kills every process whose ancestry leads to pid. It is
// the fallback for platforms and children that escape their process group.
func killDescendants(pid int) {
	procs, err := ps.Processes()
	if err != nil {
		return
	}

	children := make(map[int][]int, len(procs))
	for _, proc := range procs {
		children[proc.PPid()] = append(children[proc.PPid()], proc.Pid())
	}

	queue := append([]int(nil), children[pid]...)

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		queue = append(queue, children[next]...)

		if proc, err := os.FindProcess(next); err == nil {
			_ = proc.Kill()
		}
	}
}

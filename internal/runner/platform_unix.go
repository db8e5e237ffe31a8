//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

const isWindows = false

// The child gets its own process group so a kill also reaches the tools it
// spawns (ffmpeg) and their copies of our pipes.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return p.Kill()
}

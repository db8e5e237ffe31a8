//go:build windows

package runner

import (
	"os"
	"os/exec"
)

const isWindows = true

func configureCommand(cmd *exec.Cmd) {}

func killProcess(p *os.Process) error {
	return p.Kill()
}

//go:build !windows

package proc

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func defaultShell() (string, string) { return "/bin/sh", "-c" }

func shellCommand(shell, flag, command string) *exec.Cmd {
	return exec.Command(shell, flag, command)
}

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(p *os.Process) error {
	if err := unix.Kill(-p.Pid, unix.SIGTERM); err != nil && err != unix.ESRCH {
		return p.Kill()
	}
	return nil
}

func forceKillProcessGroup(p *os.Process) error {
	if err := unix.Kill(-p.Pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return p.Kill()
	}
	return nil
}

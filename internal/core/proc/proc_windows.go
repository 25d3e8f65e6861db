//go:build windows

package proc

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

func defaultShell() (string, string) { return "cmd", "/c" }

func shellCommand(shell, flag, command string) *exec.Cmd {
	cmd := exec.Command(shell)
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: shell + " " + flag + " " + command}
	return cmd
}

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

func killProcessGroup(p *os.Process) error {
	kill := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(p.Pid))
	if err := kill.Run(); err != nil {
		return p.Kill()
	}
	return nil
}

// taskkill /F already forces termination.
func forceKillProcessGroup(p *os.Process) error {
	return p.Kill()
}

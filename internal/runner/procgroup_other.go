//go:build !unix

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(_ *exec.Cmd) {}

// signalGroup can only reach the direct child on this platform.
func signalGroup(pid int, sig syscall.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		return p.Kill()
	}
	return p.Signal(sig)
}

func killGroup(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func signaled(_ *os.ProcessState) bool {
	return false
}

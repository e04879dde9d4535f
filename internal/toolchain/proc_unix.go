//go:build unix

package toolchain

import (
	"os/exec"
	"syscall"
)

// killGroup puts the tool in its own process group and makes cancellation
// kill the whole group, so compilers spawned by the tool die with it.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

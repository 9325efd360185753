//go:build !windows

package agentclient

import (
	"os/exec"
	"syscall"
)

// setDetachAttrs puts the agent host in its own process group so it
// survives the daemon process exiting or being killed.
func setDetachAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

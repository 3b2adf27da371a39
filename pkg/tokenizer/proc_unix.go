//go:build unix

package tokenizer

import (
	"os/exec"
	"syscall"
)

// shellCommand builds the "{command} {locale}" invocation through a shell,
// placed in its own process group so the whole tree can be killed at once.
func shellCommand(command, locale string) *exec.Cmd {
	cmd := exec.Command("/bin/sh", "-c", command+" "+locale)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// killTree signals the process group rooted at pid, taking down the
// tokenizer's worker subprocesses with it.
func killTree(pid int) error {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		// Process already gone; fall back to a direct kill attempt.
		return syscall.Kill(pid, syscall.SIGKILL)
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

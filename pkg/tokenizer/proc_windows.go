//go:build windows

package tokenizer

import (
	"os/exec"
	"strconv"
)

// shellCommand builds the "{command} {locale}" invocation through cmd.exe.
func shellCommand(command, locale string) *exec.Cmd {
	return exec.Command("cmd", "/C", command+" "+locale)
}

// killTree uses taskkill to terminate the process and all its descendants.
func killTree(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

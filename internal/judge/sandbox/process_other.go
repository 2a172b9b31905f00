//go:build !linux

package sandbox

import (
	"context"
	"os"
	"syscall"
)

func processAttr() *syscall.SysProcAttr {
	return nil
}

func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func applyLimits(context.Context, int, resourceLimits) {}

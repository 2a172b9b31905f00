//go:build linux

package sandbox

import (
	"context"
	"syscall"

	"ojjudge/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func processAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

func killGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// applyLimits sets rlimits on a started process. Failures are logged and ignored.
func applyLimits(ctx context.Context, pid int, limits resourceLimits) {
	if limits.addressSpaceBytes > 0 {
		lim := &unix.Rlimit{Cur: limits.addressSpaceBytes, Max: limits.addressSpaceBytes}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, lim, nil); err != nil {
			logger.Warn(ctx, "set address space limit failed", zap.Int("pid", pid), zap.Error(err))
		}
	}
	if limits.cpuSeconds > 0 {
		lim := &unix.Rlimit{Cur: limits.cpuSeconds, Max: limits.cpuSeconds}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, lim, nil); err != nil {
			logger.Warn(ctx, "set cpu limit failed", zap.Int("pid", pid), zap.Error(err))
		}
	}
}

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
)

type resourceLimits struct {
	addressSpaceBytes uint64
	cpuSeconds        uint64
}

type processSpec struct {
	argv        []string
	dir         string
	stdin       string
	hasStdin    bool
	timeout     time.Duration
	outputLimit int64
	limits      resourceLimits
	memoryMB    int
	cgroup      *runCgroup
}

type processResult struct {
	stdout   string
	stderr   string
	exitCode int
	timedOut bool
	oomKill  bool
	elapsed  time.Duration
	startErr error
}

// runProcess starts spec.argv in its own process group and kills the whole group when the
// wall timer fires or ctx is canceled.
func runProcess(ctx context.Context, spec processSpec) processResult {
	cmd := exec.Command(spec.argv[0], spec.argv[1:]...)
	cmd.Dir = spec.dir
	cmd.SysProcAttr = processAttr()
	cmd.WaitDelay = 500 * time.Millisecond
	if spec.hasStdin {
		cmd.Stdin = strings.NewReader(spec.stdin)
	}
	return wait(ctx, cmd, spec, func(pid int) {
		applyLimits(ctx, pid, spec.limits)
	})
}

func wait(ctx context.Context, cmd *exec.Cmd, spec processSpec, started func(pid int)) processResult {
	stdout := &limitedBuffer{limit: spec.outputLimit}
	stderr := &limitedBuffer{limit: spec.outputLimit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return processResult{startErr: err}
	}
	pid := cmd.Process.Pid
	if spec.cgroup != nil {
		if err := spec.cgroup.add(pid); err != nil {
			killGroup(pid)
			_ = cmd.Wait()
			return processResult{startErr: err}
		}
	}
	if started != nil {
		started(pid)
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		timer := time.NewTimer(spec.timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			kill(pid, spec.cgroup)
		case <-timer.C:
			timedOut.Store(true)
			kill(pid, spec.cgroup)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	elapsed := time.Since(start)
	// reap anything the program forked into its group
	kill(pid, spec.cgroup)

	res := processResult{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		exitCode: exitCode(waitErr, cmd),
		timedOut: timedOut.Load(),
		oomKill:  spec.cgroup != nil && spec.cgroup.oomKilled(),
		elapsed:  elapsed,
	}
	if res.timedOut && res.exitCode == 0 {
		res.exitCode = -1
	}
	return res
}

func kill(pid int, cg *runCgroup) {
	killGroup(pid)
	if cg != nil {
		cg.kill()
	}
}

func exitCode(err error, cmd *exec.Cmd) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// limitedBuffer keeps the first limit bytes and silently drops the rest so a chatty
// program cannot block on a full pipe.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - int64(b.buf.Len())
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// runCgroup is a cgroup v2 directory holding one program run.
type runCgroup struct {
	path string
}

func newRunCgroup(root string, memoryMB int, pids int64) (*runCgroup, error) {
	path, err := os.MkdirTemp(root, "run-")
	if err != nil {
		return nil, fmt.Errorf("create cgroup: %w", err)
	}
	cg := &runCgroup{path: path}
	pidsValue := "max"
	if pids > 0 {
		pidsValue = strconv.FormatInt(pids, 10)
	}
	if err := cg.write("pids.max", pidsValue); err != nil {
		cg.remove()
		return nil, err
	}
	if memoryMB > 0 {
		if err := cg.write("memory.max", strconv.FormatInt(int64(memoryMB)<<20, 10)); err != nil {
			cg.remove()
			return nil, err
		}
		// absent when swap accounting is off
		_ = cg.write("memory.swap.max", "0")
	}
	return cg, nil
}

func (c *runCgroup) add(pid int) error {
	return c.write("cgroup.procs", strconv.Itoa(pid))
}

func (c *runCgroup) kill() {
	_ = c.write("cgroup.kill", "1")
}

func (c *runCgroup) oomKilled() bool {
	data, err := os.ReadFile(filepath.Join(c.path, "memory.events"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "oom_kill" {
			n, _ := strconv.ParseInt(fields[1], 10, 64)
			return n > 0
		}
	}
	return false
}

// remove deletes the directory; cgroupfs only supports rmdir of an empty group.
func (c *runCgroup) remove() error {
	return os.Remove(c.path)
}

func (c *runCgroup) write(name, value string) error {
	if err := os.WriteFile(filepath.Join(c.path, name), []byte(value), 0o640); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

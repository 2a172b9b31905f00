//go:build linux

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunCgroupWritesLimits(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cg, err := newRunCgroup(root, 64, 16)
	if err != nil {
		t.Fatalf("newRunCgroup: %v", err)
	}
	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(cg.path, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	if got := read("pids.max"); got != "16" {
		t.Fatalf("pids.max = %q", got)
	}
	if got := read("memory.max"); got != "67108864" {
		t.Fatalf("memory.max = %q", got)
	}
	if err := cg.add(4242); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := read("cgroup.procs"); got != "4242" {
		t.Fatalf("cgroup.procs = %q", got)
	}
}

func TestRunCgroupOOMKilled(t *testing.T) {
	t.Parallel()
	cg, err := newRunCgroup(t.TempDir(), 0, 0)
	if err != nil {
		t.Fatalf("newRunCgroup: %v", err)
	}
	if cg.oomKilled() {
		t.Fatalf("no memory.events must not report oom")
	}
	events := filepath.Join(cg.path, "memory.events")
	if err := os.WriteFile(events, []byte("low 0\nhigh 0\nmax 3\noom 1\noom_kill 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cg.oomKilled() {
		t.Fatalf("oom_kill 0 must not report oom")
	}
	if err := os.WriteFile(events, []byte("oom 1\noom_kill 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !cg.oomKilled() {
		t.Fatalf("expected oom kill")
	}
	if _, err := os.Stat(filepath.Join(cg.path, "memory.max")); !os.IsNotExist(err) {
		t.Fatalf("memory.max must not be written without a memory limit")
	}
}

//go:build linux

// Command sandbox-init applies resource limits and an optional seccomp filter to itself,
// then execs the program described by the JSON request on stdin.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"ojjudge/internal/judge/sandbox"

	"github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	req, err := decodeRequest(os.Stdin)
	if err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := os.Chdir(req.Dir); err != nil {
		return fmt.Errorf("chdir workdir: %w", err)
	}
	if err := applyRlimits(req); err != nil {
		return err
	}
	if err := redirectStdin(req.StdinPath); err != nil {
		return err
	}

	cmdPath, err := exec.LookPath(req.Argv[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	env := buildEnv(os.Environ())

	// the filter must be last: it may forbid the syscalls used above
	if req.SeccompProfile != "" {
		if err := applySeccomp(req.SeccompProfile); err != nil {
			return err
		}
	}
	return unix.Exec(cmdPath, req.Argv, env)
}

func decodeRequest(r io.Reader) (sandbox.HelperRequest, error) {
	var req sandbox.HelperRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return sandbox.HelperRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func validateRequest(req sandbox.HelperRequest) error {
	if len(req.Argv) == 0 {
		return fmt.Errorf("command is required")
	}
	if req.Dir == "" {
		return fmt.Errorf("work dir is required")
	}
	return nil
}

func applyRlimits(req sandbox.HelperRequest) error {
	limits := []struct {
		name     string
		resource int
		value    uint64
	}{
		{"as", unix.RLIMIT_AS, req.AddressSpaceBytes},
		{"cpu", unix.RLIMIT_CPU, req.CPUSeconds},
		{"fsize", unix.RLIMIT_FSIZE, req.FileSizeBytes},
	}
	for _, l := range limits {
		if l.value == 0 {
			continue
		}
		if err := unix.Setrlimit(l.resource, &unix.Rlimit{Cur: l.value, Max: l.value}); err != nil {
			return fmt.Errorf("set rlimit %s: %w", l.name, err)
		}
	}
	return nil
}

func redirectStdin(path string) error {
	if path == "" {
		path = os.DevNull
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	defer f.Close()
	if err := unix.Dup2(int(f.Fd()), int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	return nil
}

// buildEnv keeps only the variables toolchains need.
func buildEnv(parent []string) []string {
	keep := map[string]bool{"PATH": true, "HOME": true, "LANG": true, "JAVA_HOME": true}
	env := make([]string, 0, len(keep))
	hasPath := false
	for _, kv := range parent {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !keep[key] {
			continue
		}
		if key == "PATH" {
			hasPath = true
		}
		env = append(env, kv)
	}
	if !hasPath {
		env = append(env, "PATH="+defaultPath)
	}
	return env
}

type seccompConfig struct {
	DefaultAction string           `json:"defaultAction"`
	Syscalls      []seccompSyscall `json:"syscalls"`
}

type seccompSyscall struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

func applySeccomp(profilePath string) error {
	data, err := os.ReadFile(profilePath)
	if err != nil {
		return fmt.Errorf("read seccomp profile: %w", err)
	}
	var cfg seccompConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse seccomp profile: %w", err)
	}
	defaultAction, err := parseSeccompAction(cfg.DefaultAction)
	if err != nil {
		return err
	}
	filter, err := seccomp.NewFilter(defaultAction)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer filter.Release()
	for _, rule := range cfg.Syscalls {
		action, err := parseSeccompAction(rule.Action)
		if err != nil {
			return err
		}
		for _, name := range rule.Names {
			call, err := seccomp.GetSyscallFromName(name)
			if err != nil {
				// unknown on this architecture
				continue
			}
			if err := filter.AddRule(call, action); err != nil {
				return fmt.Errorf("add seccomp rule %s: %w", name, err)
			}
		}
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func parseSeccompAction(action string) (seccomp.ScmpAction, error) {
	switch strings.ToUpper(action) {
	case "SCMP_ACT_ALLOW":
		return seccomp.ActAllow, nil
	case "SCMP_ACT_ERRNO":
		return seccomp.ActErrno.SetReturnCode(int16(unix.EPERM)), nil
	case "SCMP_ACT_KILL", "SCMP_ACT_KILL_PROCESS":
		return seccomp.ActKillProcess, nil
	default:
		return seccomp.ActKillProcess, fmt.Errorf("unsupported seccomp action: %s", action)
	}
}

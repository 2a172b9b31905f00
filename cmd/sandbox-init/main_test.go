//go:build linux

package main

import (
	"strings"
	"testing"

	"ojjudge/internal/judge/sandbox"

	"github.com/seccomp/libseccomp-golang"
)

func TestDecodeAndValidateRequest(t *testing.T) {
	req, err := decodeRequest(strings.NewReader(`{"argv":["python3","main.py"],"dir":"/tmp/x","cpu_seconds":2}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.CPUSeconds != 2 || req.Argv[1] != "main.py" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if err := validateRequest(req); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := validateRequest(sandbox.HelperRequest{Dir: "/tmp"}); err == nil {
		t.Fatalf("expected error for empty argv")
	}
	if err := validateRequest(sandbox.HelperRequest{Argv: []string{"a"}}); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestBuildEnvKeepsToolchainVariables(t *testing.T) {
	env := buildEnv([]string{"PATH=/opt/bin", "SECRET=x", "JAVA_HOME=/jdk"})
	joined := strings.Join(env, ";")
	if strings.Contains(joined, "SECRET") {
		t.Fatalf("unexpected variable leaked: %v", env)
	}
	if !strings.Contains(joined, "PATH=/opt/bin") || !strings.Contains(joined, "JAVA_HOME=/jdk") {
		t.Fatalf("missing variables: %v", env)
	}
	if got := buildEnv(nil); len(got) != 1 || got[0] != "PATH="+defaultPath {
		t.Fatalf("expected default PATH, got %v", got)
	}
}

func TestParseSeccompAction(t *testing.T) {
	if a, err := parseSeccompAction("scmp_act_allow"); err != nil || a != seccomp.ActAllow {
		t.Fatalf("allow: %v %v", a, err)
	}
	if a, err := parseSeccompAction("SCMP_ACT_KILL"); err != nil || a != seccomp.ActKillProcess {
		t.Fatalf("kill: %v %v", a, err)
	}
	if _, err := parseSeccompAction("SCMP_ACT_TRACE"); err == nil {
		t.Fatalf("expected unsupported action error")
	}
}

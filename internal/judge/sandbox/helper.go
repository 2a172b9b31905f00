package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// helperStdinFile holds program input when launching through the helper, whose own
// stdin carries the HelperRequest.
const helperStdinFile = ".stdin"

// HelperRequest is the JSON document sandbox-init reads from stdin before exec.
type HelperRequest struct {
	Argv              []string `json:"argv"`
	Dir               string   `json:"dir"`
	StdinPath         string   `json:"stdin_path,omitempty"`
	AddressSpaceBytes uint64   `json:"address_space_bytes,omitempty"`
	CPUSeconds        uint64   `json:"cpu_seconds,omitempty"`
	FileSizeBytes     uint64   `json:"file_size_bytes,omitempty"`
	SeccompProfile    string   `json:"seccomp_profile,omitempty"`
}

func (e *Executor) runWithHelper(ctx context.Context, spec processSpec) processResult {
	req := HelperRequest{
		Argv:              spec.argv,
		Dir:               spec.dir,
		AddressSpaceBytes: spec.limits.addressSpaceBytes,
		CPUSeconds:        spec.limits.cpuSeconds,
		FileSizeBytes:     uint64(spec.outputLimit),
	}
	if e.cfg.EnableSeccomp {
		req.SeccompProfile = e.cfg.SeccompProfile
	}
	if spec.hasStdin {
		req.StdinPath = filepath.Join(spec.dir, helperStdinFile)
		if err := os.WriteFile(req.StdinPath, []byte(spec.stdin), 0o644); err != nil {
			return processResult{startErr: err}
		}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return processResult{startErr: err}
	}

	cmd := exec.Command(e.cfg.HelperPath)
	cmd.Dir = spec.dir
	cmd.SysProcAttr = processAttr()
	cmd.WaitDelay = 500 * time.Millisecond
	cmd.Stdin = bytes.NewReader(payload)
	return wait(ctx, cmd, spec, nil)
}

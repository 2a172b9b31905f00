// Package sandbox compiles and runs untrusted programs under time and memory limits.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ojjudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Outcome classifies how an execution ended.
type Outcome string

const (
	OutcomeOK                Outcome = "OK"
	OutcomeCompileError      Outcome = "CompileError"
	OutcomeRuntimeError      Outcome = "RuntimeError"
	OutcomeTimeLimitExceeded Outcome = "TimeLimitExceeded"
	OutcomeUnsupported       Outcome = "Unsupported"
	OutcomeSystemError       Outcome = "SystemError"
)

// User-visible error texts.
const (
	MessageTimeLimitExceeded   = "时间超限"
	MessageMemoryLimitExceeded = "内存超限"
	messageCompilePrefix       = "编译错误: "
	messageCompileTimeout      = "编译超时"
)

const (
	defaultCompileTimeout   = 10 * time.Second
	defaultOutputLimitBytes = 64 * 1024
	defaultTimeLimitMs      = 1000
	defaultMemoryLimitMB    = 128
)

// Request describes one run of a program against one input.
type Request struct {
	Code        string
	Language    string
	Input       string
	TimeLimit   int // ms
	MemoryLimit int // MB
}

// Result is the outcome of Execute. Error is empty iff Outcome is OK.
type Result struct {
	Stdout  string
	Error   string
	Outcome Outcome
	Elapsed time.Duration
}

// Config controls executor behavior.
type Config struct {
	WorkRoot         string        `yaml:"workRoot" toml:"workRoot"`
	CompileTimeout   time.Duration `yaml:"compileTimeout" toml:"compileTimeout"`
	OutputLimitBytes int64         `yaml:"outputLimitBytes" toml:"outputLimitBytes"`
	// HelperPath launches programs through sandbox-init when set.
	HelperPath     string `yaml:"helperPath" toml:"helperPath"`
	EnableSeccomp  bool   `yaml:"enableSeccomp" toml:"enableSeccomp"`
	SeccompProfile string `yaml:"seccompProfile" toml:"seccompProfile"`
	// CgroupRoot is a delegated cgroup v2 directory; runs get a child group
	// with memory.max and pids.max when set.
	CgroupRoot string `yaml:"cgroupRoot" toml:"cgroupRoot"`
	PidsLimit  int64  `yaml:"pidsLimit" toml:"pidsLimit"`
}

// Executor runs programs in per-call temporary directories.
type Executor struct {
	cfg       Config
	languages *Languages
}

// NewExecutor creates an executor. A nil table uses the default languages.
func NewExecutor(cfg Config, languages *Languages) (*Executor, error) {
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = defaultCompileTimeout
	}
	if cfg.OutputLimitBytes <= 0 {
		cfg.OutputLimitBytes = defaultOutputLimitBytes
	}
	if cfg.WorkRoot != "" {
		if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
			return nil, fmt.Errorf("create work root: %w", err)
		}
	}
	if languages == nil {
		var err error
		if languages, err = NewLanguages(nil); err != nil {
			return nil, err
		}
	}
	return &Executor{cfg: cfg, languages: languages}, nil
}

// Languages exposes the language table.
func (e *Executor) Languages() *Languages {
	return e.languages
}

// Execute compiles (when needed) and runs req.Code. It never panics; setup failures
// are reported as OutcomeSystemError.
func (e *Executor) Execute(ctx context.Context, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "executor panic", zap.Any("panic", r))
			res = Result{Outcome: OutcomeSystemError, Error: fmt.Sprint(r)}
		}
	}()

	lang, ok := e.languages.Lookup(req.Language)
	if !ok {
		return Result{Outcome: OutcomeUnsupported, Error: fmt.Sprintf("不支持的语言: %s", req.Language)}
	}
	if req.TimeLimit <= 0 {
		req.TimeLimit = defaultTimeLimitMs
	}
	if req.MemoryLimit <= 0 {
		req.MemoryLimit = defaultMemoryLimitMB
	}

	dir, err := os.MkdirTemp(e.cfg.WorkRoot, "ojjudge-run-")
	if err != nil {
		return systemError(ctx, "create work dir", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn(ctx, "remove work dir failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	vars := templateVars{dir: dir, memoryMB: req.MemoryLimit}
	var sourceFile string
	vars.class, sourceFile = lang.sourceName(req.Code)
	vars.src = filepath.Join(dir, sourceFile)
	if lang.BinaryFile != "" {
		vars.bin = filepath.Join(dir, lang.BinaryFile)
	}
	if err := os.WriteFile(vars.src, []byte(req.Code), 0o644); err != nil {
		return systemError(ctx, "write source", err)
	}

	if lang.Compile != "" {
		argv, err := buildCommand(lang.Compile, vars)
		if err != nil {
			return systemError(ctx, "build compile command", err)
		}
		out := e.run(ctx, processSpec{argv: argv, dir: dir, timeout: e.cfg.CompileTimeout, outputLimit: e.cfg.OutputLimitBytes})
		switch {
		case out.startErr != nil:
			return systemError(ctx, "start compiler", out.startErr)
		case out.timedOut:
			return Result{Outcome: OutcomeCompileError, Error: messageCompilePrefix + messageCompileTimeout, Elapsed: out.elapsed}
		case out.exitCode != 0:
			diag := stripWorkDir(out.stderr, dir)
			return Result{Outcome: OutcomeCompileError, Error: messageCompilePrefix + diag, Elapsed: out.elapsed}
		}
	}

	argv, err := buildCommand(lang.Run, vars)
	if err != nil {
		return systemError(ctx, "build run command", err)
	}
	spec := processSpec{
		argv:        argv,
		dir:         dir,
		timeout:     time.Duration(req.TimeLimit) * time.Millisecond,
		outputLimit: e.cfg.OutputLimitBytes,
		limits:      runLimits(lang, req),
		memoryMB:    req.MemoryLimit,
	}
	if strings.TrimSpace(req.Input) != "" {
		spec.stdin = req.Input
		spec.hasStdin = true
	}
	out := e.run(ctx, spec)

	res = Result{Elapsed: out.elapsed}
	switch {
	case out.startErr != nil:
		return systemError(ctx, "start program", out.startErr)
	case out.timedOut:
		res.Outcome = OutcomeTimeLimitExceeded
		res.Error = MessageTimeLimitExceeded
	case out.oomKill:
		res.Outcome = OutcomeRuntimeError
		res.Error = MessageMemoryLimitExceeded
	case out.exitCode != 0:
		res.Outcome = OutcomeRuntimeError
		res.Error = strings.TrimSpace(stripWorkDir(out.stderr, dir))
		if res.Error == "" {
			res.Error = fmt.Sprintf("运行错误: exit status %d", out.exitCode)
		}
	default:
		res.Outcome = OutcomeOK
		res.Stdout = strings.TrimSpace(out.stdout)
	}
	return res
}

// stripWorkDir removes the per-run directory prefix from diagnostics shown to users.
func stripWorkDir(text, dir string) string {
	return strings.ReplaceAll(text, dir+string(os.PathSeparator), "")
}

func (e *Executor) run(ctx context.Context, spec processSpec) processResult {
	if e.cfg.CgroupRoot != "" && spec.memoryMB > 0 {
		cg, err := newRunCgroup(e.cfg.CgroupRoot, spec.memoryMB, e.cfg.PidsLimit)
		if err != nil {
			logger.Warn(ctx, "cgroup unavailable, running with rlimits only", zap.Error(err))
		} else {
			spec.cgroup = cg
			defer func() {
				if err := cg.remove(); err != nil {
					logger.Warn(ctx, "remove cgroup failed", zap.String("path", cg.path), zap.Error(err))
				}
			}()
		}
	}
	if e.cfg.HelperPath != "" {
		return e.runWithHelper(ctx, spec)
	}
	return runProcess(ctx, spec)
}

func runLimits(lang LanguageSpec, req Request) resourceLimits {
	limits := resourceLimits{
		// one spare second so the wall timer, not SIGXCPU, reports the timeout
		cpuSeconds: uint64((req.TimeLimit+999)/1000) + 1,
	}
	if lang.LimitAddressSpace {
		limits.addressSpaceBytes = uint64(req.MemoryLimit) << 20
	}
	return limits
}

func systemError(ctx context.Context, stage string, err error) Result {
	logger.Error(ctx, "sandbox setup failed", zap.String("stage", stage), zap.Error(err))
	return Result{Outcome: OutcomeSystemError, Error: fmt.Sprintf("%s: %v", stage, err)}
}

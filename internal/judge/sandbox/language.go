package sandbox

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// LanguageSpec describes how to build and run one language.
// Command templates may reference {src}, {bin}, {dir}, {class} and {mem}.
type LanguageSpec struct {
	ID         string   `yaml:"id" toml:"id"`
	Aliases    []string `yaml:"aliases" toml:"aliases"`
	SourceFile string   `yaml:"sourceFile" toml:"sourceFile"`
	BinaryFile string   `yaml:"binaryFile" toml:"binaryFile"`
	Compile    string   `yaml:"compile" toml:"compile"`
	Run        string   `yaml:"run" toml:"run"`
	// DetectClass names the source file after the first declared class.
	DetectClass bool `yaml:"detectClass" toml:"detectClass"`
	// LimitAddressSpace enables RLIMIT_AS; runtimes that reserve large
	// virtual ranges up front (JVM, V8) leave it off.
	LimitAddressSpace bool `yaml:"limitAddressSpace" toml:"limitAddressSpace"`
}

// DefaultLanguages returns the built-in language table.
func DefaultLanguages() []LanguageSpec {
	return []LanguageSpec{
		{
			ID:                "python",
			Aliases:           []string{"python3", "py"},
			SourceFile:        "main.py",
			Run:               "python3 {src}",
			LimitAddressSpace: true,
		},
		{
			ID:                "cpp",
			Aliases:           []string{"c++"},
			SourceFile:        "main.cpp",
			BinaryFile:        "main",
			Compile:           "g++ -std=c++11 -O2 {src} -o {bin}",
			Run:               "{bin}",
			LimitAddressSpace: true,
		},
		{
			ID:          "java",
			SourceFile:  "Main.java",
			Compile:     "javac {src}",
			Run:         "java -Xmx{mem}m -cp {dir} {class}",
			DetectClass: true,
		},
		{
			ID:         "javascript",
			Aliases:    []string{"js", "node"},
			SourceFile: "main.js",
			Run:        "node {src}",
		},
	}
}

// Languages indexes language specs by id and alias.
type Languages struct {
	byName map[string]LanguageSpec
}

// NewLanguages builds a table from the defaults plus overrides; an override with a known
// id replaces the default entry.
func NewLanguages(overrides []LanguageSpec) (*Languages, error) {
	merged := DefaultLanguages()
	for _, o := range overrides {
		if o.ID == "" {
			return nil, fmt.Errorf("language id is required")
		}
		if strings.TrimSpace(o.Run) == "" {
			return nil, fmt.Errorf("language %s: run command is required", o.ID)
		}
		if o.SourceFile == "" {
			return nil, fmt.Errorf("language %s: source file is required", o.ID)
		}
		replaced := false
		for i := range merged {
			if merged[i].ID == o.ID {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}
	}

	l := &Languages{byName: make(map[string]LanguageSpec)}
	for _, spec := range merged {
		l.byName[strings.ToLower(spec.ID)] = spec
		for _, alias := range spec.Aliases {
			if _, taken := l.byName[strings.ToLower(alias)]; !taken {
				l.byName[strings.ToLower(alias)] = spec
			}
		}
	}
	return l, nil
}

// Lookup finds a language by id or alias, case-insensitively.
func (l *Languages) Lookup(name string) (LanguageSpec, bool) {
	spec, ok := l.byName[strings.ToLower(strings.TrimSpace(name))]
	return spec, ok
}

var (
	publicClassPattern = regexp.MustCompile(`public\s+class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	classPattern       = regexp.MustCompile(`\bclass\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// detectClassName returns the first public class, else the first class, else Main.
func detectClassName(code string) string {
	if m := publicClassPattern.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	if m := classPattern.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return "Main"
}

// sourceName returns the class name and file name the source is written under.
func (l LanguageSpec) sourceName(code string) (class, file string) {
	if !l.DetectClass {
		return "", l.SourceFile
	}
	class = detectClassName(code)
	return class, class + filepath.Ext(l.SourceFile)
}

type templateVars struct {
	src      string
	bin      string
	dir      string
	class    string
	memoryMB int
}

// buildCommand splits tpl first so substituted paths never need quoting.
func buildCommand(tpl string, vars templateVars) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, fmt.Errorf("command template is required")
	}
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("command is empty")
	}
	replacer := strings.NewReplacer(
		"{src}", vars.src,
		"{bin}", vars.bin,
		"{dir}", vars.dir,
		"{class}", vars.class,
		"{mem}", strconv.Itoa(vars.memoryMB),
	)
	for i, f := range fields {
		fields[i] = replacer.Replace(f)
	}
	return fields, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ojjudge/internal/judge/sandbox"
	"ojjudge/internal/judge/specialjudge"

	"github.com/spf13/cobra"
)

type execArgs struct {
	language    string
	inputPath   string
	timeLimit   int
	memoryLimit int
}

type checkArgs struct {
	configPath    string
	inputPath     string
	scriptPath    string
	scriptLang    string
	template      string
	scriptTimeout time.Duration
}

var (
	execFlags  execArgs
	checkFlags checkArgs
)

var execCmd = &cobra.Command{
	Use:   "exec <source-file>",
	Short: "Compile and run one source file through the sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		input, err := readOptional(execFlags.inputPath)
		if err != nil {
			return err
		}
		language := execFlags.language
		if language == "" {
			language = languageFromExt(args[0])
		}
		executor, err := newToolExecutor()
		if err != nil {
			return err
		}
		res := executor.Execute(cmd.Context(), sandbox.Request{
			Code:        string(code),
			Language:    language,
			Input:       input,
			TimeLimit:   execFlags.timeLimit,
			MemoryLimit: execFlags.memoryLimit,
		})
		fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
		fmt.Fprintf(cmd.ErrOrStderr(), "outcome=%s elapsed=%s\n", res.Outcome, res.Elapsed)
		if res.Outcome != sandbox.OutcomeOK {
			return fmt.Errorf("%s", res.Error)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <user-output> <expected-output>",
	Short: "Run the special judge on two output files, or print a judge script template",
	Args: func(cmd *cobra.Command, args []string) error {
		if checkFlags.template != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkFlags.template != "" {
			return printTemplate(cmd, checkFlags.template)
		}
		in, err := buildCheckInput(args[0], args[1], checkFlags)
		if err != nil {
			return err
		}
		var runner specialjudge.Runner
		if in.Script != "" {
			executor, err := newToolExecutor()
			if err != nil {
				return err
			}
			runner = executor
		}
		verdict := specialjudge.NewEngine(runner).Judge(cmd.Context(), in)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	},
}

func init() {
	execCmd.Flags().StringVarP(&execFlags.language, "lang", "l", "", "language id (defaults to the file extension)")
	execCmd.Flags().StringVarP(&execFlags.inputPath, "input", "i", "", "file fed to stdin")
	execCmd.Flags().IntVar(&execFlags.timeLimit, "time", 1000, "time limit in ms")
	execCmd.Flags().IntVar(&execFlags.memoryLimit, "memory", 128, "memory limit in MB")

	checkCmd.Flags().StringVar(&checkFlags.configPath, "judge-config", "", "JSON judge_config file")
	checkCmd.Flags().StringVarP(&checkFlags.inputPath, "input", "i", "", "test input passed to judge scripts")
	checkCmd.Flags().StringVar(&checkFlags.scriptPath, "script", "", "custom judge script")
	checkCmd.Flags().StringVar(&checkFlags.scriptLang, "script-lang", "python", "judge script language")
	checkCmd.Flags().DurationVar(&checkFlags.scriptTimeout, "script-timeout", 5*time.Second, "judge script timeout")
	checkCmd.Flags().StringVar(&checkFlags.template, "template", "", "print a built-in judge script (\"list\" shows names)")
}

// newToolExecutor uses the sandbox section of --config when it can be read and
// falls back to defaults otherwise.
func newToolExecutor() (*sandbox.Executor, error) {
	var cfg AppConfig
	if err := decodeConfig(configPath, &cfg); err != nil {
		cfg = AppConfig{}
	}
	languages, err := sandbox.NewLanguages(cfg.Languages)
	if err != nil {
		return nil, err
	}
	return sandbox.NewExecutor(cfg.Sandbox, languages)
}

func buildCheckInput(userPath, expectedPath string, args checkArgs) (specialjudge.Input, error) {
	user, err := os.ReadFile(userPath)
	if err != nil {
		return specialjudge.Input{}, err
	}
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return specialjudge.Input{}, err
	}
	inputData, err := readOptional(args.inputPath)
	if err != nil {
		return specialjudge.Input{}, err
	}
	script, err := readOptional(args.scriptPath)
	if err != nil {
		return specialjudge.Input{}, err
	}
	rawConfig, err := readOptional(args.configPath)
	if err != nil {
		return specialjudge.Input{}, err
	}
	cfg, err := specialjudge.ParseConfig(rawConfig)
	if err != nil {
		return specialjudge.Input{}, fmt.Errorf("parse judge config: %w", err)
	}
	return specialjudge.Input{
		UserOutput:     string(user),
		ExpectedOutput: string(expected),
		InputData:      inputData,
		Script:         script,
		ScriptLanguage: args.scriptLang,
		ScriptTimeout:  args.scriptTimeout,
		Config:         cfg,
	}, nil
}

func printTemplate(cmd *cobra.Command, name string) error {
	if name == "list" {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(specialjudge.TemplateNames(), "\n"))
		return nil
	}
	src, ok := specialjudge.Template(name)
	if !ok {
		return fmt.Errorf("unknown template %q, available: %s", name, strings.Join(specialjudge.TemplateNames(), ", "))
	}
	fmt.Fprint(cmd.OutOrStdout(), src)
	return nil
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func languageFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cpp", ".cc", ".cxx":
		return "cpp"
	case ".java":
		return "java"
	case ".js":
		return "javascript"
	default:
		return "python"
	}
}

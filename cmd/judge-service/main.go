package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "configs/judge_service.yaml"
	defaultEnvFile    = ".env"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "judge-service",
	Short:         "Judge worker for programming, choice, true/false and short-answer submissions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "optional dotenv file loaded before the config")
	rootCmd.AddCommand(serveCmd, execCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentflow"
	"github.com/hupe1980/agentflow/config"
)

var rootCmd = &cobra.Command{
	Use:           "agentflow",
	Short:         "Agent orchestration engine",
	Long:          `agentflow runs tool-calling reasoning stages alone, in sequential pipelines or as parallel fan-outs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("provider", "", "reasoning provider (scripted, openai, anthropic); overrides AGENTFLOW_PROVIDER")
	rootCmd.PersistentFlags().String("stages", "", "YAML or JSON stage override file; overrides AGENTFLOW_STAGES_FILE")
}

// loadApp reads the environment, applies flag overrides and builds the app.
func loadApp(cmd *cobra.Command) (*agentflow.App, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("provider"); p != "" {
		cfg.Provider = p
	}
	if s, _ := cmd.Flags().GetString("stages"); s != "" {
		cfg.StagesFile = s
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return agentflow.New(func(o *agentflow.Options) { o.Config = cfg })
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/maskproxy/maskproxy/internal/config"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			for _, msg := range verr.Problems {
				fmt.Fprintln(os.Stderr, msg)
			}
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "maskproxy",
		Short:        "PII-masking proxy for chat-completion APIs",
		SilenceUsage: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newMaskCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig reads the config file and overlays the environment. The env
// file is only required when the caller named it explicitly.
func loadConfig(cmd *cobra.Command, configPath, envFile string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	lookup, err := config.EnvLookup(envFile, cmd.Flags().Changed("env-file"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newValidateCmd() *cobra.Command {
	var configPath string
	var envFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath, envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "config ok"); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (optional)")
	cmd.Flags().StringVar(&envFile, "env-file", config.DefaultEnvFile, "Path to .env file")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version=%s commit=%s buildDate=%s\n", version, commit, buildDate)
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/maskproxy/maskproxy/internal/config"
	"github.com/maskproxy/maskproxy/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var inputPath string
	var configPath string
	var since string
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize an exchange log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				if cfg.Logging.ExchangeLog == "" {
					return errors.New("no exchange log: pass --in or set logging.exchangeLog")
				}
				inputPath = cfg.ResolvePath(cfg.Logging.ExchangeLog)
			}

			reader := report.Reader{}
			if since != "" {
				dur, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid since duration: %w", err)
				}
				reader.Since = time.Now().Add(-dur)
			}

			exchanges, err := reader.Read(inputPath)
			if err != nil {
				return err
			}

			summary := report.Summarize(exchanges)
			switch format {
			case "", "text":
				return report.WriteOutput(outPath, []byte(report.RenderText(summary)))
			case "md":
				return report.WriteOutput(outPath, []byte(report.RenderMarkdown(summary)))
			case "json":
				data, err := report.RenderJSON(summary)
				if err != nil {
					return err
				}
				return report.WriteOutput(outPath, data)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&inputPath, "in", "", "Path to exchange log JSONL (default logging.exchangeLog)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&since, "since", "", "Only include entries newer than this duration (e.g. 10m)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|md|json")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/maskproxy/maskproxy/internal/mask"
	"github.com/spf13/cobra"
)

func newMaskCmd() *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "mask [file]",
		Short: "Mask a JSON document from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			masked, counts, err := mask.JSON(data)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(masked)); err != nil {
				return err
			}
			if stats {
				writeStats(cmd.ErrOrStderr(), counts)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&stats, "stats", false, "Print redaction counts per category to stderr")

	return cmd
}

func writeStats(w io.Writer, counts mask.Counts) {
	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)
	for _, category := range categories {
		_, _ = fmt.Fprintf(w, "%s: %d\n", category, counts[mask.Category(category)])
	}
	_, _ = fmt.Fprintf(w, "total: %d\n", counts.Total())
}

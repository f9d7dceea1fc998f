package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"koosseis/internal/checkpoint"
	"koosseis/internal/pipeline"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export:xlsx",
		Short: "Export the checkpoint files to a workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(cfg.OutputDir, "instrumentations.xlsx")
			}
			results, failed, err := checkpoint.Read(cfg.ResultsFile, cfg.FailedFile)
			if err != nil {
				return err
			}
			if err := pipeline.ExportCheckpointToXLSX(results, failed, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported results=%d failed=%d -> %s\n", len(results), len(failed), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Workbook path (default OUTPUT_DIR/instrumentations.xlsx)")

	return cmd
}

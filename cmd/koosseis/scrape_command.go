package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"koosseis/internal"
	"koosseis/internal/scrape"
	"koosseis/internal/source"
	"koosseis/internal/storage"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var out string
	var store bool

	cmd := &cobra.Command{
		Use:   "scrape <composer-id>...",
		Short: "Scrape composer works pages into the composers JSON file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.InputFile
			}

			client := scrape.NewClient(*cfg, ctx.logger())
			composers, fetchErr := client.FetchComposers(cmd.Context(), args)
			if len(composers) == 0 {
				return fetchErr
			}

			if err := writeComposers(out, composers); err != nil {
				return err
			}
			rows := source.ToWorkRows(composers)
			fmt.Fprintf(cmd.OutOrStdout(), "scraped composers=%d works=%d -> %s\n", len(composers), len(rows), out)

			if store {
				err := ctx.withDB(func(db *storage.DB) error {
					return db.UpsertWorks(rows)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored works=%d in %s\n", len(rows), cfg.DBPath)
			}
			return fetchErr
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output JSON path (default INPUT_FILE)")
	cmd.Flags().BoolVar(&store, "store", false, "Also upsert the scraped works into the sqlite works table")

	return cmd
}

func writeComposers(path string, composers []internal.Composer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(composers); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

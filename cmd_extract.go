package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"detail-scraper/internal/extract"
)

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <file.html | URL>",
	Short: "Extract fields from a single page and print them as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		target := args[0]
		var markup string
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			cl, err := newClient(cfg)
			if err != nil {
				return err
			}
			if markup, err = cl.Fetch(cmd.Context(), target); err != nil {
				return err
			}
		} else {
			b, err := os.ReadFile(target)
			if err != nil {
				return fmt.Errorf("read %s: %w", target, err)
			}
			markup = string(b)
		}

		rec, err := extract.New(loadPreset()).Extract(markup)
		if err != nil {
			return err
		}
		rec.URL = target
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

package main

import (
	"github.com/spf13/cobra"

	"detail-scraper/internal/export"
	"detail-scraper/internal/logx"
	"detail-scraper/internal/store"
)

var (
	exportOut   string
	exportLimit int
)

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "details.json", "output json path")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "keep only the newest N rows (0 = all)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--out details.json]",
	Short: "Export the destination table to JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := setup()
		if err != nil {
			return err
		}
		wh, err := store.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer wh.Close()
		n, err := export.ToJSON(ctx, wh, exportOut, exportLimit)
		if err != nil {
			return err
		}
		logx.Infof("已导出 %d 条到 %s", n, exportOut)
		return nil
	},
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"detail-scraper/internal/feeds"
	"detail-scraper/internal/logx"
	"detail-scraper/internal/model"
	"detail-scraper/internal/store"
)

var (
	seedFeed     string
	seedFile     string
	seedGroup    string
	seedContains string
	seedMax      int
)

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedFeed, "feed", "", "feed URL, or a page declaring one via <link rel=alternate>")
	f.StringVar(&seedFile, "file", "", "plain text file with one URL per line")
	f.StringVar(&seedGroup, "group", "", "group label for imported rows (default: feed title)")
	f.StringVar(&seedContains, "contains", "", "keep only links containing this fragment")
	f.IntVar(&seedMax, "max", 0, "maximum rows to import from the feed (0 = all)")
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed (--feed URL | --file PATH)",
	Short: "Add candidate URLs to the source table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedFeed == "" && seedFile == "" {
			return errors.New("one of --feed or --file is required")
		}
		ctx := cmd.Context()
		cfg, err := setup()
		if err != nil {
			return err
		}

		var recs []model.SourceRecord
		if seedFeed != "" {
			cl, err := newClient(cfg)
			if err != nil {
				return err
			}
			feedURL, err := feeds.DiscoverFeed(ctx, cl, seedFeed)
			if err != nil {
				return err
			}
			got, err := feeds.FromFeed(ctx, cl, feedURL, feeds.Options{Contains: seedContains, Group: seedGroup, Max: seedMax})
			if err != nil {
				return err
			}
			logx.Infof("订阅 %s 解析到 %d 条", feedURL, len(got))
			recs = append(recs, got...)
		}
		if seedFile != "" {
			fh, err := os.Open(seedFile)
			if err != nil {
				return fmt.Errorf("open url list: %w", err)
			}
			got, err := feeds.FromList(fh, seedGroup)
			fh.Close()
			if err != nil {
				return err
			}
			logx.Infof("列表 %s 读取到 %d 条", seedFile, len(got))
			recs = append(recs, got...)
		}

		wh, err := store.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer wh.Close()
		n, err := wh.UpsertSources(ctx, recs)
		if err != nil {
			return fmt.Errorf("upsert sources: %w", err)
		}
		logx.Infof("来源表新增/更新 %d 条", n)
		return nil
	},
}

package main

import (
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"detail-scraper/internal/config"
	"detail-scraper/internal/export"
	"detail-scraper/internal/extract"
	"detail-scraper/internal/job"
	"detail-scraper/internal/logx"
	"detail-scraper/internal/pacing"
	"detail-scraper/internal/store"
)

var (
	batchIndex int
	sample     bool
)

func init() {
	runCmd.Flags().IntVar(&batchIndex, "batch-index", 0, "page of the source table to process (offset = index * PAGE_SIZE)")
	runCmd.Flags().BoolVar(&sample, "sample", false, "randomly sample stale source rows instead of paging")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--batch-index N | --sample]",
	Short: "Scrape one batch of source URLs into the destination table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := setup()
		if err != nil {
			return err
		}
		cl, err := newClient(cfg)
		if err != nil {
			return err
		}
		wh, err := store.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer wh.Close()

		deps := job.Deps{
			Source:    wh,
			Dest:      wh,
			Marker:    wh,
			Lookup:    wh,
			Fetcher:   cl,
			Extractor: extract.New(loadPreset()),
			Pacing:    policyFrom(cfg),
		}
		if cfg.DryRun {
			// 演练：结果写到本地 JSON，不改动目标表与来源表
			deps.Dest = export.JSONWriter{Path: cfg.DryRunOutput}
			deps.Marker = nil
			logx.Infof("演练模式：结果写入 %s", cfg.DryRunOutput)
		}

		start := time.Now()
		sum, err := job.New(cfg, deps).Run(ctx, job.Selection{BatchIndex: batchIndex, Sample: sample})
		logx.Infof("本轮结束：候选=%d 跳过=%d 尝试=%d 成功=%d 失败=%d 写入=%d 耗时=%s",
			sum.Candidates, sum.Skipped, sum.Attempted, sum.Succeeded, sum.Failed, sum.Written,
			time.Since(start).Round(time.Second))
		return err
	},
}

func policyFrom(cfg *config.Config) pacing.Policy {
	lo, hi := cfg.ItemDelay()
	every, cdLo, cdHi := cfg.Cooldown()
	return pacing.Policy{
		Min:         lo,
		Max:         hi,
		Cadence:     every,
		CooldownMin: cdLo,
		CooldownMax: cdHi,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

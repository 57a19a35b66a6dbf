// 包 job 负责一次抓取任务的编排：
// - 读取候选来源记录并按策略过滤
// - 打乱顺序后逐条抓取/解析，按节奏策略等待
// - 一次性批量写入，必要时回写来源表的抓取时间
//
// 单条 URL 的失败只记录并跳过；读取来源或写入目标失败则整轮失败，不做部分重试。
package job

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"detail-scraper/internal/config"
	"detail-scraper/internal/dedup"
	"detail-scraper/internal/logx"
	"detail-scraper/internal/model"
	"detail-scraper/internal/pacing"
	"detail-scraper/internal/store"
)

var (
	ErrSourceRead       = errors.New("source read failed")
	ErrDestinationWrite = errors.New("destination write failed")
)

// WriteError 携带批量写入返回的逐行错误。
type WriteError struct {
	Rows []model.RowError
}

func (e *WriteError) Error() string {
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		parts = append(parts, fmt.Sprintf("#%d %s: %s", r.Index, r.URL, r.Err))
	}
	return fmt.Sprintf("%d row error(s): %s", len(e.Rows), strings.Join(parts, "; "))
}

type SourceReader interface {
	ListSources(ctx context.Context, q store.SourceQuery) ([]model.SourceRecord, error)
}

type DetailWriter interface {
	InsertDetails(ctx context.Context, rows []model.DetailRecord) ([]model.RowError, error)
}

type SourceMarker interface {
	MarkScraped(ctx context.Context, urls []string, at time.Time) error
}

type ScrapedLookup interface {
	ScrapedURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
}

// PageFetcher 取回单个页面；超时由实现自行控制。
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Extractor interface {
	Extract(markup string) (model.DetailRecord, error)
}

// Shuffler 由 *rand.Rand 实现。
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Deps 为 Runner 的外部协作者。Marker/Lookup 可为空。
type Deps struct {
	Source    SourceReader
	Dest      DetailWriter
	Marker    SourceMarker
	Lookup    ScrapedLookup
	Fetcher   PageFetcher
	Extractor Extractor
	Pacing    pacing.Policy
	Sleeper   pacing.Sleeper
	Shuffler  Shuffler
	Now       func() time.Time
}

// Selection 选择本轮的候选：默认按 BatchIndex 分页；Sample 为 true 时随机抽取未新鲜抓取的记录。
type Selection struct {
	BatchIndex int
	Sample     bool
}

// Runner 抓取任务执行器，持有配置与协作者。
type Runner struct {
	cfg  *config.Config
	deps Deps
}

// New 创建 Runner，未提供的 Sleeper/Shuffler/Now 使用生产实现。
func New(cfg *config.Config, deps Deps) *Runner {
	if deps.Sleeper == nil {
		deps.Sleeper = pacing.ContextSleeper{}
	}
	if deps.Shuffler == nil {
		deps.Shuffler = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{cfg: cfg, deps: deps}
}

// Run 执行一轮：读取→过滤→打乱→逐条抓取解析→批量写入→回写。
func (r *Runner) Run(ctx context.Context, sel Selection) (model.Summary, error) {
	var sum model.Summary
	log := logx.With("batch", sel.BatchIndex)

	q := r.query(sel)
	recs, err := r.deps.Source.ListSources(ctx, q)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	sum.Candidates = len(recs)
	log.Info(fmt.Sprintf("读取候选 URL：%d 条", len(recs)), "offset", q.Offset, "limit", q.Limit, "random", q.Random)
	if len(recs) == 0 {
		log.Info("没有需要处理的 URL，正常结束")
		return sum, nil
	}

	skip, err := r.skipFunc(ctx, recs)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	todo, skipped := dedup.Apply(recs, skip)
	sum.Skipped = skipped
	if skipped > 0 {
		log.Info(fmt.Sprintf("按 %s 规则跳过 %d 条", r.cfg.Skip.Mode, skipped))
	}
	r.deps.Shuffler.Shuffle(len(todo), func(i, j int) { todo[i], todo[j] = todo[j], todo[i] })

	col := NewCollector()
	total := len(todo)
	for i, rec := range todo {
		idx := i + 1
		wait := r.deps.Pacing.NextDelay(idx, total)
		log.Info(fmt.Sprintf("[%d/%d] 处理中：%s", idx, total, rec.URL), "wait", wait)
		if err := r.deps.Sleeper.Sleep(ctx, wait); err != nil {
			return sum, err
		}

		sum.Attempted++
		detail, err := r.processOne(ctx, rec)
		if err != nil {
			sum.Failed++
			log.Warn(fmt.Sprintf("跳过：%s", rec.URL), "err", err)
		} else {
			sum.Succeeded++
			col.Add(detail)
		}

		if d, ok := r.deps.Pacing.CooldownDue(idx); ok {
			log.Info(fmt.Sprintf("%d 条完成，长休息", idx), "wait", d)
			if err := r.deps.Sleeper.Sleep(ctx, d); err != nil {
				return sum, err
			}
		}
	}

	rows := col.Records()
	if len(rows) == 0 {
		log.Warn("没有可写入的数据（全部抓取失败或被跳过）")
		return sum, nil
	}
	rowErrs, err := r.deps.Dest.InsertDetails(ctx, rows)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrDestinationWrite, err)
	}
	if len(rowErrs) > 0 {
		return sum, fmt.Errorf("%w: %w", ErrDestinationWrite, &WriteError{Rows: rowErrs})
	}
	sum.Written = len(rows)
	log.Info(fmt.Sprintf("已写入 %d 条", len(rows)))

	if r.cfg.MarkProcessed && r.deps.Marker != nil {
		if err := r.deps.Marker.MarkScraped(ctx, col.URLs(), r.deps.Now().UTC()); err != nil {
			// 数据已写入，回写失败只影响下次的新鲜度判断
			log.Warn("回写抓取时间失败", "err", err)
		}
	}
	return sum, nil
}

// processOne 抓取并解析单条；URL/分组/加载时间由这里写入记录。
func (r *Runner) processOne(ctx context.Context, rec model.SourceRecord) (model.DetailRecord, error) {
	markup, err := r.deps.Fetcher.Fetch(ctx, rec.URL)
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("fetch: %w", err)
	}
	d, err := r.deps.Extractor.Extract(markup)
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("extract: %w", err)
	}
	d.URL = rec.URL
	d.GroupLabel = rec.GroupLabel
	d.LoadedAt = r.deps.Now().UTC()
	if d.ViewCount == nil || d.CommentCount == nil || d.WorksCount == nil {
		logx.Debugf("部分统计项缺失：%s view=%t comment=%t works=%t",
			rec.URL, d.ViewCount != nil, d.CommentCount != nil, d.WorksCount != nil)
	}
	return d, nil
}

func (r *Runner) query(sel Selection) store.SourceQuery {
	if sel.Sample {
		limit := r.cfg.SampleSize
		if limit <= 0 {
			limit = r.cfg.PageSize
		}
		stale := r.deps.Now().Add(-r.cfg.FreshWindow())
		return store.SourceQuery{Limit: limit, Random: true, StaleBefore: &stale}
	}
	idx := sel.BatchIndex
	if idx < 0 {
		idx = 0
	}
	return store.SourceQuery{Offset: idx * r.cfg.PageSize, Limit: r.cfg.PageSize}
}

// skipFunc 根据 SKIP.mode 构造过滤规则；existing 模式需要查询目标表。
func (r *Runner) skipFunc(ctx context.Context, recs []model.SourceRecord) (dedup.SkipFunc, error) {
	switch r.cfg.Skip.Mode {
	case config.SkipFresh:
		return dedup.ScrapedWithin(r.cfg.FreshWindow(), r.deps.Now()), nil
	case config.SkipExisting:
		if r.deps.Lookup == nil {
			return nil, errors.New("skip mode existing needs a destination lookup")
		}
		done, err := r.deps.Lookup.ScrapedURLs(ctx, dedup.URLs(recs))
		if err != nil {
			return nil, fmt.Errorf("lookup scraped urls: %w", err)
		}
		return dedup.AlreadyDone(done), nil
	}
	return dedup.Never, nil
}

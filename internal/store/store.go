// 包 store 提供数据仓库实现（SQLite / Postgres）：读取来源表、批量写入详情表、回写抓取时间。
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"detail-scraper/internal/config"
	"detail-scraper/internal/model"
)

// SourceQuery 描述一次来源读取：
// - Random=false：按 URL 排序分页（Offset/Limit）
// - Random=true：随机抽样 Limit 条
// - StaleBefore 非空时只取从未抓取或早于该时间抓取的记录
type SourceQuery struct {
	Offset      int
	Limit       int
	Random      bool
	StaleBefore *time.Time
}

// Warehouse 为任务所需的全部仓库操作。
type Warehouse interface {
	ListSources(ctx context.Context, q SourceQuery) ([]model.SourceRecord, error)
	InsertDetails(ctx context.Context, rows []model.DetailRecord) ([]model.RowError, error)
	MarkScraped(ctx context.Context, urls []string, at time.Time) error
	ScrapedURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	UpsertSources(ctx context.Context, recs []model.SourceRecord) (int, error)
	ListDetails(ctx context.Context) ([]model.DetailRecord, error)
	Close() error
}

// Tables 为来源表与目标表名（已校验为标识符，可带 schema 前缀）。
type Tables struct {
	Source      string
	Destination string
}

// Open 按配置打开对应的仓库并执行建表。
func Open(ctx context.Context, cfg *config.Config) (Warehouse, error) {
	t := Tables{Source: cfg.SourceTable, Destination: cfg.DestinationTable}
	switch cfg.Database.Type {
	case "sqlite", "":
		return OpenSQLite(cfg.Database.DSN, t)
	case "postgres":
		return OpenPostgres(ctx, cfg.Database.DSN, cfg.Database.MaxConns, t)
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
}

// quoteIdent 为 "a" 或 "a"."b" 形式加双引号。
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

const detailColumns = `url, title, sub_title, bookmark, summary,
	illust_view_url, novel_view_url, illust_post_url, novel_post_url,
	view_count, comment_count, works_count, loaded_at, group_label`

func detailArgs(r model.DetailRecord) []any {
	return []any{
		r.URL, r.Title, r.SubTitle, r.Bookmark, r.Summary,
		r.IllustViewURL, r.NovelViewURL, r.IllustPostURL, r.NovelPostURL,
		r.ViewCount, r.CommentCount, r.WorksCount, r.LoadedAt.UTC(), r.GroupLabel,
	}
}

// chunks 将 s 切分为不超过 n 的分段。
func chunks(s []string, n int) [][]string {
	var out [][]string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}

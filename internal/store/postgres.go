package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"detail-scraper/internal/model"
)

// Postgres 基于 pgxpool 的仓库实现，适用于共享的分析库。
type Postgres struct {
	pool *pgxpool.Pool
	src  string
	dst  string
}

// OpenPostgres 建立连接池并执行建表。
func OpenPostgres(ctx context.Context, dsn string, maxConns int, t Tables) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool, src: quoteIdent(t.Source), dst: quoteIdent(t.Destination)}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + p.src + ` (
            url TEXT PRIMARY KEY,
            group_label TEXT,
            last_scraped_at TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS ` + p.dst + ` (
            url TEXT NOT NULL,
            title TEXT,
            sub_title TEXT,
            bookmark TEXT,
            summary TEXT,
            illust_view_url TEXT,
            novel_view_url TEXT,
            illust_post_url TEXT,
            novel_post_url TEXT,
            view_count BIGINT,
            comment_count BIGINT,
            works_count BIGINT,
            loaded_at TIMESTAMPTZ,
            group_label TEXT
        )`,
	}
	for _, q := range stmts {
		if _, err := p.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

func (p *Postgres) ListSources(ctx context.Context, q SourceQuery) ([]model.SourceRecord, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT url, group_label, last_scraped_at FROM ` + p.src + ` WHERE url IS NOT NULL AND url <> ''`)
	if q.StaleBefore != nil {
		args = append(args, q.StaleBefore.UTC())
		fmt.Fprintf(&sb, ` AND (last_scraped_at IS NULL OR last_scraped_at < $%d)`, len(args))
	}
	if q.Random {
		sb.WriteString(` ORDER BY random()`)
	} else {
		sb.WriteString(` ORDER BY url`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit, q.Offset)
		fmt.Fprintf(&sb, ` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()
	var out []model.SourceRecord
	for rows.Next() {
		var r model.SourceRecord
		if err := rows.Scan(&r.URL, &r.GroupLabel, &r.LastScrapedAt); err != nil {
			return nil, fmt.Errorf("scan sources: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// InsertDetails 通过 pgx.Batch 在一个事务里发送全部插入；出现逐行错误时回滚。
func (p *Postgres) InsertDetails(ctx context.Context, rows []model.DetailRecord) ([]model.RowError, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	queued := make([]int, 0, len(rows))
	var rowErrs []model.RowError
	for i, r := range rows {
		if r.URL == "" {
			rowErrs = append(rowErrs, model.RowError{Index: i, Err: "url required"})
			continue
		}
		b.Queue(`INSERT INTO `+p.dst+` (`+detailColumns+`)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`, detailArgs(r)...)
		queued = append(queued, i)
	}
	br := tx.SendBatch(ctx, b)
	if re, ok := firstBatchError(br, queued, rows); ok {
		rowErrs = append(rowErrs, re)
	}
	if err := br.Close(); err != nil && len(rowErrs) == 0 {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	if len(rowErrs) > 0 {
		return rowErrs, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return nil, nil
}

type batchExecer interface {
	Exec() (pgconn.CommandTag, error)
}

// firstBatchError 读取批量结果直到第一条失败。事务此后已中止，
// 之后的行只会报 "current transaction is aborted"，不再逐条记录。
func firstBatchError(br batchExecer, queued []int, rows []model.DetailRecord) (model.RowError, bool) {
	for _, i := range queued {
		if _, err := br.Exec(); err != nil {
			return model.RowError{Index: i, URL: rows[i].URL, Err: err.Error()}, true
		}
	}
	return model.RowError{}, false
}

func (p *Postgres) MarkScraped(ctx context.Context, urls []string, at time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx, `UPDATE `+p.src+` SET last_scraped_at = $1 WHERE url = ANY($2)`, at.UTC(), urls)
	if err != nil {
		return fmt.Errorf("mark scraped: %w", err)
	}
	return nil
}

func (p *Postgres) ScrapedURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(urls) == 0 {
		return out, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT url FROM `+p.dst+` WHERE url = ANY($1)`, urls)
	if err != nil {
		return nil, fmt.Errorf("query scraped urls: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect scraped urls: %w", err)
	}
	for _, u := range found {
		out[u] = struct{}{}
	}
	return out, nil
}

func (p *Postgres) UpsertSources(ctx context.Context, recs []model.SourceRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for _, r := range recs {
		if r.URL == "" {
			return 0, errors.New("source.url required")
		}
		b.Queue(`INSERT INTO `+p.src+` (url, group_label) VALUES ($1, $2)
            ON CONFLICT (url) DO UPDATE SET group_label = COALESCE(excluded.group_label, `+p.src+`.group_label)`,
			r.URL, r.GroupLabel)
	}
	br := p.pool.SendBatch(ctx, b)
	n := 0
	for range recs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return n, fmt.Errorf("upsert source: %w", err)
		}
		n++
	}
	if err := br.Close(); err != nil {
		return n, fmt.Errorf("close batch: %w", err)
	}
	return n, nil
}

func (p *Postgres) ListDetails(ctx context.Context) ([]model.DetailRecord, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+detailColumns+` FROM `+p.dst+` ORDER BY loaded_at DESC, url`)
	if err != nil {
		return nil, fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()
	var out []model.DetailRecord
	for rows.Next() {
		var (
			r                     model.DetailRecord
			title, sub, book, sum *string
			iv, nv, ip, np        *string
			loaded                *time.Time
		)
		if err := rows.Scan(&r.URL, &title, &sub, &book, &sum, &iv, &nv, &ip, &np,
			&r.ViewCount, &r.CommentCount, &r.WorksCount, &loaded, &r.GroupLabel); err != nil {
			return nil, fmt.Errorf("scan details: %w", err)
		}
		r.Title, r.SubTitle, r.Bookmark, r.Summary = deref(title), deref(sub), deref(book), deref(sum)
		r.IllustViewURL, r.NovelViewURL, r.IllustPostURL, r.NovelPostURL = deref(iv), deref(nv), deref(ip), deref(np)
		if loaded != nil {
			r.LoadedAt = *loaded
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate details: %w", err)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"detail-scraper/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db  *sql.DB
	src string
	dst string
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string, t Tables) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db, src: quoteIdent(t.Source), dst: quoteIdent(t.Destination)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.src + ` (
            url TEXT PRIMARY KEY,
            group_label TEXT,
            last_scraped_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS ` + s.dst + ` (
            url TEXT NOT NULL,
            title TEXT,
            sub_title TEXT,
            bookmark TEXT,
            summary TEXT,
            illust_view_url TEXT,
            novel_view_url TEXT,
            illust_post_url TEXT,
            novel_post_url TEXT,
            view_count INTEGER,
            comment_count INTEGER,
            works_count INTEGER,
            loaded_at TIMESTAMP,
            group_label TEXT
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// ListSources 读取来源记录，见 SourceQuery。
func (s *SQLite) ListSources(ctx context.Context, q SourceQuery) ([]model.SourceRecord, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT url, group_label, last_scraped_at FROM ` + s.src + ` WHERE url IS NOT NULL AND url <> ''`)
	if q.StaleBefore != nil {
		sb.WriteString(` AND (last_scraped_at IS NULL OR last_scraped_at < ?)`)
		args = append(args, q.StaleBefore.UTC())
	}
	if q.Random {
		sb.WriteString(` ORDER BY RANDOM()`)
	} else {
		sb.WriteString(` ORDER BY url`)
	}
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, q.Limit, q.Offset)
	}
	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()
	var out []model.SourceRecord
	for rows.Next() {
		var (
			r     model.SourceRecord
			group sql.NullString
			last  sql.NullTime
		)
		if err := rows.Scan(&r.URL, &group, &last); err != nil {
			return nil, fmt.Errorf("scan sources: %w", err)
		}
		if group.Valid {
			r.GroupLabel = model.StringPtr(group.String)
		}
		if last.Valid {
			t := last.Time
			r.LastScrapedAt = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// InsertDetails 在单个事务内逐行写入；任一行失败则整体回滚并返回逐行错误。
func (s *SQLite) InsertDetails(ctx context.Context, rows []model.DetailRecord) ([]model.RowError, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+s.dst+` (`+detailColumns+`)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var rowErrs []model.RowError
	for i, r := range rows {
		if r.URL == "" {
			rowErrs = append(rowErrs, model.RowError{Index: i, Err: "url required"})
			continue
		}
		if _, err := stmt.ExecContext(ctx, detailArgs(r)...); err != nil {
			rowErrs = append(rowErrs, model.RowError{Index: i, URL: r.URL, Err: err.Error()})
		}
	}
	if len(rowErrs) > 0 {
		return rowErrs, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return nil, nil
}

// MarkScraped 回写来源表的 last_scraped_at。
func (s *SQLite) MarkScraped(ctx context.Context, urls []string, at time.Time) error {
	for _, part := range chunks(urls, 500) {
		args := make([]any, 0, len(part)+1)
		args = append(args, at.UTC())
		for _, u := range part {
			args = append(args, u)
		}
		q := `UPDATE ` + s.src + ` SET last_scraped_at = ? WHERE url IN (` + placeholders(len(part)) + `)`
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("mark scraped: %w", err)
		}
	}
	return nil
}

// ScrapedURLs 返回 urls 中已存在于目标表的部分。
func (s *SQLite) ScrapedURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, part := range chunks(urls, 500) {
		args := make([]any, len(part))
		for i, u := range part {
			args[i] = u
		}
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT url FROM `+s.dst+` WHERE url IN (`+placeholders(len(part))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("query scraped urls: %w", err)
		}
		for rows.Next() {
			var u string
			if err := rows.Scan(&u); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan scraped urls: %w", err)
			}
			out[u] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate scraped urls: %w", err)
		}
	}
	return out, nil
}

// UpsertSources 插入来源记录（url 唯一）；已存在时仅在新分组非空时更新分组。
func (s *SQLite) UpsertSources(ctx context.Context, recs []model.SourceRecord) (int, error) {
	n := 0
	for _, r := range recs {
		if r.URL == "" {
			return n, errors.New("source.url required")
		}
		_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.src+`(url, group_label) VALUES(?,?)
            ON CONFLICT(url) DO UPDATE SET group_label = COALESCE(excluded.group_label, group_label)`,
			r.URL, r.GroupLabel)
		if err != nil {
			return n, fmt.Errorf("upsert source %s: %w", r.URL, err)
		}
		n++
	}
	return n, nil
}

// ListDetails 返回目标表全部记录，按 loaded_at 倒序。
func (s *SQLite) ListDetails(ctx context.Context) ([]model.DetailRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+detailColumns+` FROM `+s.dst+` ORDER BY loaded_at DESC, url`)
	if err != nil {
		return nil, fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()
	var out []model.DetailRecord
	for rows.Next() {
		var (
			r                      model.DetailRecord
			views, comments, works sql.NullInt64
			loaded                 sql.NullTime
			group                  sql.NullString
			title, sub, book, sum  sql.NullString
			iv, nv, ip, np         sql.NullString
		)
		if err := rows.Scan(&r.URL, &title, &sub, &book, &sum, &iv, &nv, &ip, &np,
			&views, &comments, &works, &loaded, &group); err != nil {
			return nil, fmt.Errorf("scan details: %w", err)
		}
		r.Title, r.SubTitle, r.Bookmark, r.Summary = title.String, sub.String, book.String, sum.String
		r.IllustViewURL, r.NovelViewURL, r.IllustPostURL, r.NovelPostURL = iv.String, nv.String, ip.String, np.String
		r.ViewCount = nullInt(views)
		r.CommentCount = nullInt(comments)
		r.WorksCount = nullInt(works)
		if loaded.Valid {
			r.LoadedAt = loaded.Time
		}
		if group.Valid {
			r.GroupLabel = model.StringPtr(group.String)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate details: %w", err)
	}
	return out, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return model.Int64Ptr(v.Int64)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

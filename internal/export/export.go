// 包 export 负责 JSON 输出：
// - JSONWriter：演练模式下代替数据仓库接收批量写入
// - ToJSON：把目标表导出为带统计信息的 JSON 文件
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"detail-scraper/internal/model"
)

// DetailLister 由数据仓库实现。
type DetailLister interface {
	ListDetails(ctx context.Context) ([]model.DetailRecord, error)
}

// ToJSON 查询目标表并写入 JSON 文件（带缩进），limit>0 时只保留最新的 limit 条。
func ToJSON(ctx context.Context, s DetailLister, path string, limit int) (int, error) {
	details, err := s.ListDetails(ctx)
	if err != nil {
		return 0, fmt.Errorf("list details: %w", err)
	}
	if limit > 0 && len(details) > limit {
		details = details[:limit]
	}
	if err := writeFile(path, build(details)); err != nil {
		return 0, err
	}
	return len(details), nil
}

// JSONWriter 将批量写入落到本地 JSON 文件，不触碰数据仓库。
type JSONWriter struct {
	Path string
}

// InsertDetails 满足 job.DetailWriter；缺少 URL 的行按逐行错误返回，与仓库实现一致。
func (w JSONWriter) InsertDetails(_ context.Context, rows []model.DetailRecord) ([]model.RowError, error) {
	var rowErrs []model.RowError
	for i, r := range rows {
		if r.URL == "" {
			rowErrs = append(rowErrs, model.RowError{Index: i, Err: "url required"})
		}
	}
	if len(rowErrs) > 0 {
		return rowErrs, nil
	}
	if err := writeFile(w.Path, build(rows)); err != nil {
		return nil, err
	}
	return nil, nil
}

func build(details []model.DetailRecord) model.Export {
	withViews := 0
	for _, d := range details {
		if d.ViewCount != nil {
			withViews++
		}
	}
	if details == nil {
		details = []model.DetailRecord{}
	}
	return model.Export{
		Stats: model.Stats{
			DetailsTotal: len(details),
			WithViews:    withViews,
			UpdatedAt:    time.Now().UTC(),
		},
		Details: details,
	}
}

func writeFile(path string, out model.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}

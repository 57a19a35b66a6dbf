// 包 dedup 过滤不需要再抓取的来源记录。
// 两种规则（已存在即跳过 / 时间窗口内抓过即跳过）都表达为 SkipFunc，组合方式一致。
package dedup

import (
	"time"

	"detail-scraper/internal/model"
)

// Filter 返回 candidates 中不在 done 里的 URL，保持输入顺序；重复的候选只保留首次出现。
func Filter(candidates []string, done map[string]struct{}) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, u := range candidates {
		if _, ok := done[u]; ok {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// SkipFunc 判断一条来源记录是否应跳过。
type SkipFunc func(model.SourceRecord) bool

// Never 不跳过任何记录。
func Never(model.SourceRecord) bool { return false }

// AlreadyDone 跳过 URL 已在 done 集合中的记录。
func AlreadyDone(done map[string]struct{}) SkipFunc {
	return func(r model.SourceRecord) bool {
		_, ok := done[r.URL]
		return ok
	}
}

// ScrapedWithin 跳过在 now 之前 window 时长内抓取过的记录；从未抓取过的不跳过。
func ScrapedWithin(window time.Duration, now time.Time) SkipFunc {
	cutoff := now.Add(-window)
	return func(r model.SourceRecord) bool {
		return r.LastScrapedAt != nil && r.LastScrapedAt.After(cutoff)
	}
}

// Any 任一规则命中即跳过。
func Any(fns ...SkipFunc) SkipFunc {
	return func(r model.SourceRecord) bool {
		for _, f := range fns {
			if f != nil && f(r) {
				return true
			}
		}
		return false
	}
}

// Apply 返回未被跳过的记录（保持顺序，按 URL 去重）以及被跳过的条数。
func Apply(records []model.SourceRecord, skip SkipFunc) ([]model.SourceRecord, int) {
	if skip == nil {
		skip = Never
	}
	out := make([]model.SourceRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	skipped := 0
	for _, r := range records {
		if _, ok := seen[r.URL]; ok || r.URL == "" || skip(r) {
			skipped++
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
	}
	return out, skipped
}

// URLs 提取记录中的 URL 列表。
func URLs(records []model.SourceRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.URL)
	}
	return out
}

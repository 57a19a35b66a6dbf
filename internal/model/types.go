// 包 model 定义抓取任务的数据模型（来源记录/详情记录/运行汇总）。
package model

import "time"

// SourceRecord 为来源表中的一行：待抓取的 URL 以及可选的分组标签。
type SourceRecord struct {
	URL           string     `json:"url"`
	GroupLabel    *string    `json:"group_label,omitempty"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
}

// DetailRecord 为单个详情页解析后的结果，写入目标表后不再修改。
// 统计字段为 nil 表示“未取到”，与 0 区分开。
type DetailRecord struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	SubTitle      string    `json:"sub_title"`
	Bookmark      string    `json:"bookmark"`
	Summary       string    `json:"summary"`
	IllustViewURL string    `json:"illust_view_url"`
	NovelViewURL  string    `json:"novel_view_url"`
	IllustPostURL string    `json:"illust_post_url"`
	NovelPostURL  string    `json:"novel_post_url"`
	ViewCount     *int64    `json:"view_count"`
	CommentCount  *int64    `json:"comment_count"`
	WorksCount    *int64    `json:"works_count"`
	LoadedAt      time.Time `json:"loaded_at"`
	GroupLabel    *string   `json:"group_label,omitempty"`
}

// RowError 为批量写入时单行的失败信息。
type RowError struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Err   string `json:"error"`
}

// Summary 为一次运行的汇总：
// Attempted = Succeeded + Failed；Skipped 为过滤掉、未尝试抓取的条数。
type Summary struct {
	Candidates int `json:"candidates"`
	Skipped    int `json:"skipped"`
	Attempted  int `json:"attempted"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Written    int `json:"written"`
}

// Stats 为导出时附带的统计信息。
type Stats struct {
	DetailsTotal int       `json:"details_total"`
	WithViews    int       `json:"with_views"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Export 为导出 JSON 的顶层结构。
type Export struct {
	Stats   Stats          `json:"stats"`
	Details []DetailRecord `json:"details"`
}

// Int64Ptr 返回 v 的指针，便于构造可空统计字段。
func Int64Ptr(v int64) *int64 { return &v }

// StringPtr 返回 s 的指针；空串返回 nil。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

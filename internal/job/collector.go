package job

import (
	"detail-scraper/internal/model"
)

// Collector 在一次运行中累积解析成功的记录，按 URL 去重并保持处理顺序。
// 仅在 Run 的单一 goroutine 内使用。
type Collector struct {
	order []string
	byURL map[string]model.DetailRecord
}

func NewCollector() *Collector {
	return &Collector{byURL: make(map[string]model.DetailRecord)}
}

// Add 记录一条结果；同一 URL 再次出现时覆盖旧值但保留原位置。
func (c *Collector) Add(r model.DetailRecord) {
	if r.URL == "" {
		return
	}
	if _, ok := c.byURL[r.URL]; !ok {
		c.order = append(c.order, r.URL)
	}
	c.byURL[r.URL] = r
}

// Records 返回副本，顺序与首次 Add 一致。
func (c *Collector) Records() []model.DetailRecord {
	out := make([]model.DetailRecord, 0, len(c.order))
	for _, u := range c.order {
		out = append(out, c.byURL[u])
	}
	return out
}

// URLs 返回已收集记录的 URL 列表。
func (c *Collector) URLs() []string {
	return append([]string(nil), c.order...)
}

// 包 feeds 负责向来源表补充待抓取 URL：
// - DiscoverFeed：给定站点页，按 <link rel=alternate> 找到订阅地址
// - FromFeed：使用 gofeed 解析 RSS/Atom/JSON Feed，条目链接即来源 URL
// - FromList：逐行读取纯文本 URL 列表
package feeds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"detail-scraper/internal/logx"
	"detail-scraper/internal/model"
)

// Getter 由 fetch.Client 实现。
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Options 控制从订阅导入的范围。
type Options struct {
	// Contains 非空时只保留链接中包含该片段的条目（如 "/tags/"）。
	Contains string
	// Group 覆盖分组标签；为空时使用订阅标题。
	Group string
	// Max 为最多导入条数，0 表示不限制。
	Max int
}

// DiscoverFeed 若 pageURL 本身可被解析为订阅则直接返回；否则在 HTML 中寻找订阅声明。
func DiscoverFeed(ctx context.Context, cl Getter, pageURL string) (string, error) {
	resp, err := cl.Get(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if looksLikeFeed(resp.Header.Get("Content-Type"), b) {
		return pageURL, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(b)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var found string
	doc.Find(`link[rel~="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := strings.ToLower(s.AttrOr("type", ""))
		href := s.AttrOr("href", "")
		if href != "" && (strings.Contains(t, "rss") || strings.Contains(t, "atom") || strings.Contains(t, "json")) {
			found = joinURL(pageURL, href)
			return false
		}
		return true
	})
	if found == "" {
		return "", fmt.Errorf("no feed discovered for %s", pageURL)
	}
	logx.Debugf("从 <link> 发现订阅：%s", found)
	return found, nil
}

// looksLikeFeed 根据 Content-Type 与开头内容粗略判断是否为订阅。
func looksLikeFeed(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "feed+json") {
		return true
	}
	head := strings.ToLower(string(body[:min(len(body), 2048)]))
	return strings.Contains(head, "<rss") || strings.Contains(head, "<feed") ||
		strings.Contains(head, "<rdf") || strings.Contains(head, "jsonfeed.org/version")
}

// FromFeed 解析订阅并把条目链接转换为来源记录（按出现顺序去重）。
func FromFeed(ctx context.Context, cl Getter, feedURL string, opts Options) ([]model.SourceRecord, error) {
	resp, err := cl.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("GET feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	group := strings.TrimSpace(opts.Group)
	if group == "" {
		group = strings.TrimSpace(feed.Title)
	}
	base := feedURL
	if feed.Link != "" {
		base = joinURL(feedURL, feed.Link)
	}

	seen := map[string]struct{}{}
	var out []model.SourceRecord
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		link = joinURL(base, link)
		if opts.Contains != "" && !strings.Contains(link, opts.Contains) {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, model.SourceRecord{URL: link, GroupLabel: model.StringPtr(group)})
		if opts.Max > 0 && len(out) >= opts.Max {
			break
		}
	}
	return out, nil
}

// FromList 逐行读取 URL；空行与 # 开头的行忽略。
func FromList(r io.Reader, group string) ([]model.SourceRecord, error) {
	sc := bufio.NewScanner(r)
	seen := map[string]struct{}{}
	var out []model.SourceRecord
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme == "" || u.Host == "" {
			logx.Warnf("忽略无效 URL：%q", line)
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, model.SourceRecord{URL: line, GroupLabel: model.StringPtr(strings.TrimSpace(group))})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return out, nil
}

// joinURL 将相对路径解析为绝对 URL。
func joinURL(base, ref string) string {
	ru, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	if ru.IsAbs() {
		return ru.String()
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}

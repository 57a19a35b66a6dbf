// 包 extract 提供详情页字段抽取：
// - 先定位锚点（主内容容器 + 信息面板），缺失即整体失败
// - 文本字段缺失时置空串，不影响整条记录
// - 数值统计由可替换的 StatLocator 定位，单项失败只会让该项为 nil
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"detail-scraper/internal/logx"
	"detail-scraper/internal/model"
	"detail-scraper/internal/rules"
)

// ErrStructureNotFound 表示锚点缺失，页面上的任何字段都不可信。
var ErrStructureNotFound = errors.New("structure not found")

// Extractor 按预设从详情页 HTML 中抽取 DetailRecord。
// 不持有与单个页面相关的状态，可在多次调用间复用。
type Extractor struct {
	preset rules.Preset
	stats  StatLocator
}

// New 根据预设创建抽取器，统计定位策略取自 preset.Stats.Strategy。
func New(p rules.Preset) *Extractor {
	p = p.WithDefaults()
	return &Extractor{preset: p, stats: LocatorFor(p.Stats)}
}

// NewWithLocator 使用指定的统计定位策略。
func NewWithLocator(p rules.Preset, loc StatLocator) *Extractor {
	return &Extractor{preset: p.WithDefaults(), stats: loc}
}

// Extract 解析 markup 并返回记录。URL/LoadedAt/GroupLabel 由调用方填写。
func (e *Extractor) Extract(markup string) (model.DetailRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return model.DetailRecord{}, fmt.Errorf("parse html: %w", err)
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument 与 Extract 相同，但接受已解析的文档。
func (e *Extractor) ExtractDocument(doc *goquery.Document) (model.DetailRecord, error) {
	p := e.preset
	article := doc.Find(p.Container).First()
	if article.Length() == 0 {
		return model.DetailRecord{}, fmt.Errorf("%w: container %q", ErrStructureNotFound, p.Container)
	}
	info := article.Find(p.InfoPanel).First()
	if info.Length() == 0 {
		return model.DetailRecord{}, fmt.Errorf("%w: info panel %q", ErrStructureNotFound, p.InfoPanel)
	}

	rec := model.DetailRecord{
		Title:    textOf(info, p.Title),
		SubTitle: textOf(article, p.SubTitle),
		Bookmark: textOf(article, p.Bookmark),
		Summary:  textOf(info, p.Summary),
	}
	e.classifyLinks(info, &rec)

	root := doc.Selection
	rec.ViewCount = e.stat(root, Stat{Name: "view_count", Label: p.Stats.ViewLabel, Index: rules.Index(p.Stats.ViewIndex)})
	rec.CommentCount = e.stat(root, Stat{Name: "comment_count", Label: p.Stats.CommentLabel, Index: rules.Index(p.Stats.CommentIndex)})
	rec.WorksCount = e.stat(root, Stat{Name: "works_count", Label: p.Stats.WorksLabel, Index: rules.Index(p.Stats.WorksIndex)})
	return rec, nil
}

// classifyLinks 按可见文本把面板内链接归入四类；同类出现多次时以最后一次为准。
func (e *Extractor) classifyLinks(info *goquery.Selection, rec *model.DetailRecord) {
	l := e.preset.Links
	info.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := compactText(a)
		switch {
		case strings.Contains(text, l.IllustView):
			rec.IllustViewURL = href
		case strings.Contains(text, l.NovelView):
			rec.NovelViewURL = href
		case strings.Contains(text, l.IllustPost):
			rec.IllustPostURL = href
		case strings.Contains(text, l.NovelPost):
			rec.NovelPostURL = href
		}
	})
}

func (e *Extractor) stat(root *goquery.Selection, s Stat) *int64 {
	v, err := e.stats.Locate(root, s)
	if err != nil {
		logx.Debugf("统计项未取到：%s 原因=%v", s.Name, err)
		return nil
	}
	return &v
}

// textOf 返回 scope 下首个匹配元素的去空白文本，未匹配时为空串。
func textOf(scope *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	return strings.TrimSpace(scope.Find(sel).First().Text())
}

// compactText 去掉元素文本中的全部空白，便于做子串匹配。
func compactText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), "")
}

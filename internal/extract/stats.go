package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"detail-scraper/internal/rules"
)

// ErrStatValueMissing 表示某个统计项未能定位或解析；只影响该项本身。
var ErrStatValueMissing = errors.New("stat value missing")

// Stat 描述一个待定位的统计项。不同策略各取所需字段。
type Stat struct {
	Name  string
	Label string
	Index int
}

// StatLocator 在整页范围内定位并解析一个统计数值。
// 页面结构多次变动过，因此定位方式做成可替换的。
type StatLocator interface {
	Locate(root *goquery.Selection, s Stat) (int64, error)
}

// LocatorFor 按规则中的策略名构造定位器，未知策略回退到 title。
func LocatorFor(st rules.Stats) StatLocator {
	title := TitleAttrLocator{Tags: st.Tags, Value: st.Value}
	pos := PositionLocator{List: st.List, Value: st.Value}
	switch st.Strategy {
	case rules.StrategyPosition:
		return pos
	case rules.StrategyChain:
		return ChainLocator{title, pos}
	default:
		return title
	}
}

// TitleAttrLocator 查找 title 属性包含 "<标签>:" 的首个元素（限定 Tags），
// 再读取其内部首个 Value 元素的文本。
type TitleAttrLocator struct {
	Tags  []string
	Value string
}

func (l TitleAttrLocator) Locate(root *goquery.Selection, s Stat) (int64, error) {
	if s.Label == "" {
		return 0, fmt.Errorf("%w: %s has no label", ErrStatValueMissing, s.Name)
	}
	tags := l.Tags
	if len(tags) == 0 {
		tags = []string{"li", "a"}
	}
	sels := make([]string, 0, len(tags))
	for _, t := range tags {
		sels = append(sels, t+"[title]")
	}
	var hit *goquery.Selection
	root.Find(strings.Join(sels, ", ")).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		title, _ := el.Attr("title")
		if strings.Contains(title, s.Label+":") || strings.Contains(title, s.Label+"：") {
			hit = el
			return false
		}
		return true
	})
	if hit == nil {
		return 0, fmt.Errorf("%w: no element titled %q", ErrStatValueMissing, s.Label)
	}
	return valueIn(hit, l.Value, s.Name)
}

// PositionLocator 取 List 匹配结果中的第 Index 项，再读取其内部 Value 元素。
type PositionLocator struct {
	List  string
	Value string
}

func (l PositionLocator) Locate(root *goquery.Selection, s Stat) (int64, error) {
	if l.List == "" || s.Index < 0 {
		return 0, fmt.Errorf("%w: %s has no list position", ErrStatValueMissing, s.Name)
	}
	item := root.Find(l.List).Eq(s.Index)
	if item.Length() == 0 {
		return 0, fmt.Errorf("%w: %s list item %d absent", ErrStatValueMissing, s.Name, s.Index)
	}
	return valueIn(item, l.Value, s.Name)
}

// ChainLocator 依次尝试各定位器，返回第一个成功的结果。
type ChainLocator []StatLocator

func (c ChainLocator) Locate(root *goquery.Selection, s Stat) (int64, error) {
	errs := make([]error, 0, len(c))
	for _, l := range c {
		v, err := l.Locate(root, s)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return 0, fmt.Errorf("%w: %s: no locator", ErrStatValueMissing, s.Name)
	}
	return 0, errors.Join(errs...)
}

func valueIn(el *goquery.Selection, valueSel, name string) (int64, error) {
	if valueSel == "" {
		valueSel = "div"
	}
	v := el.Find(valueSel).First()
	if v.Length() == 0 {
		return 0, fmt.Errorf("%w: %s value element %q absent", ErrStatValueMissing, name, valueSel)
	}
	return ParseCount(v.Text())
}

// ParseCount 去掉千分位分隔符与空白后解析为整数，如 "12,345" → 12345。
func ParseCount(raw string) (int64, error) {
	s := strings.Join(strings.Fields(raw), "")
	s = strings.NewReplacer(",", "", "，", "").Replace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrStatValueMissing)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrStatValueMissing, raw, err)
	}
	return n, nil
}

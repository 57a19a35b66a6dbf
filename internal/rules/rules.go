// 包 rules 负责加载详情页解析规则（rules.yaml），
// 以预设名组织 CSS 选择器与标签文本；页面结构变化时只需改规则而不必改代码。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个页面模板的解析规则。未填写的字段由 Default() 补齐。
type Preset struct {
	// 锚点：主内容容器与其中的信息面板，任一缺失即视为结构不符。
	Container string `yaml:"container"`
	InfoPanel string `yaml:"info_panel"`

	// 文本字段；in_article 的相对 Container 查找，其余相对 InfoPanel。
	Title    string `yaml:"title"`
	SubTitle string `yaml:"sub_title"` // in_article
	Bookmark string `yaml:"bookmark"`  // in_article
	Summary  string `yaml:"summary"`

	Links LinkLabels `yaml:"links"`
	Stats Stats      `yaml:"stats"`
}

// LinkLabels 为四类外链的可见文本片段，按此顺序匹配，先命中者生效。
type LinkLabels struct {
	IllustView string `yaml:"illust_view"`
	NovelView  string `yaml:"novel_view"`
	IllustPost string `yaml:"illust_post"`
	NovelPost  string `yaml:"novel_post"`
}

// Stats 描述数值统计的定位方式：
// - strategy：title（按 title 属性匹配标签）| position（按列表下标）| chain（先 title 后 position）
// - tags：title 策略下可匹配的元素名
// - value：标签元素内承载数字的子元素
// - list/view_index...：position 策略下的列表项选择器与各统计的下标；
//   list 无默认值，未填写时 position 一律视为取不到。下标未填写时依次为 0/1/2
type Stats struct {
	Strategy     string   `yaml:"strategy"`
	Tags         []string `yaml:"tags"`
	Value        string   `yaml:"value"`
	ViewLabel    string   `yaml:"view_label"`
	CommentLabel string   `yaml:"comment_label"`
	WorksLabel   string   `yaml:"works_label"`
	List         string   `yaml:"list"`
	ViewIndex    *int     `yaml:"view_index"`
	CommentIndex *int     `yaml:"comment_index"`
	WorksIndex   *int     `yaml:"works_index"`
}

const (
	StrategyTitle    = "title"
	StrategyPosition = "position"
	StrategyChain    = "chain"
)

// Default 返回当前详情页模板的内置预设。
func Default() Preset {
	return Preset{
		Container: "article",
		InfoPanel: "div.w-full",
		Title:     "h1",
		SubTitle:  "p.text-text3.typography-12",
		Bookmark:  "div.text-text3.typography-14",
		Summary:   "div.text-text2",
		Links: LinkLabels{
			IllustView: "イラストを見る",
			NovelView:  "小説を読む",
			IllustPost: "イラストを投稿する",
			NovelPost:  "小説を投稿する",
		},
		Stats: Stats{
			Strategy:     StrategyTitle,
			Tags:         []string{"li", "a"},
			Value:        "div",
			ViewLabel:    "閲覧数",
			CommentLabel: "コメント数",
			WorksLabel:   "作品数",
			ViewIndex:    intPtr(0),
			CommentIndex: intPtr(1),
			WorksIndex:   intPtr(2),
		},
	}
}

// WithDefaults 用内置预设补齐空字段；下标只在未填写（nil）时补齐，显式的 0 保持不变。
func (p Preset) WithDefaults() Preset {
	d := Default()
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	fill(&p.Container, d.Container)
	fill(&p.InfoPanel, d.InfoPanel)
	fill(&p.Title, d.Title)
	fill(&p.SubTitle, d.SubTitle)
	fill(&p.Bookmark, d.Bookmark)
	fill(&p.Summary, d.Summary)
	fill(&p.Links.IllustView, d.Links.IllustView)
	fill(&p.Links.NovelView, d.Links.NovelView)
	fill(&p.Links.IllustPost, d.Links.IllustPost)
	fill(&p.Links.NovelPost, d.Links.NovelPost)
	fill(&p.Stats.Strategy, d.Stats.Strategy)
	fill(&p.Stats.Value, d.Stats.Value)
	fill(&p.Stats.ViewLabel, d.Stats.ViewLabel)
	fill(&p.Stats.CommentLabel, d.Stats.CommentLabel)
	fill(&p.Stats.WorksLabel, d.Stats.WorksLabel)
	fillIdx := func(dst **int, v *int) {
		if *dst == nil {
			*dst = intPtr(*v)
		}
	}
	fillIdx(&p.Stats.ViewIndex, d.Stats.ViewIndex)
	fillIdx(&p.Stats.CommentIndex, d.Stats.CommentIndex)
	fillIdx(&p.Stats.WorksIndex, d.Stats.WorksIndex)
	if len(p.Stats.Tags) == 0 {
		p.Stats.Tags = d.Stats.Tags
	}
	p.Stats.Strategy = strings.ToLower(p.Stats.Strategy)
	return p
}

// Validate 检查策略名是否可识别；按位置定位时三个下标不能重复，否则多个统计会读到同一项。
func (p Preset) Validate() error {
	switch p.Stats.Strategy {
	case StrategyTitle:
		return nil
	case StrategyPosition, StrategyChain:
	default:
		return fmt.Errorf("unknown stats strategy: %q", p.Stats.Strategy)
	}
	if p.Stats.Strategy == StrategyPosition && strings.TrimSpace(p.Stats.List) == "" {
		return fmt.Errorf("stats strategy %q requires stats.list", p.Stats.Strategy)
	}
	seen := map[int]string{}
	for _, ix := range []struct {
		name string
		v    *int
	}{
		{"view_index", p.Stats.ViewIndex},
		{"comment_index", p.Stats.CommentIndex},
		{"works_index", p.Stats.WorksIndex},
	} {
		if ix.v == nil {
			continue
		}
		if prev, ok := seen[*ix.v]; ok {
			return fmt.Errorf("stats.%s duplicates stats.%s (%d)", ix.name, prev, *ix.v)
		}
		seen[*ix.v] = ix.name
	}
	return nil
}

func intPtr(v int) *int { return &v }

// Index 解引用下标，未设置时为 -1（PositionLocator 视为取不到）。
func Index(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}

// Load 从文件加载 YAML 到 Rules.Presets。
func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	for name, p := range r.Presets {
		p = p.WithDefaults()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("rules %s preset %s: %w", path, name, err)
		}
		r.Presets[name] = p
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写）；找不到时回退到 "default"，
// 再不行则返回内置预设。第二个返回值表示是否来自规则文件。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Default(), false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	for k, v := range r.Presets {
		if strings.ToLower(k) == "default" {
			return v, true
		}
	}
	return Default(), false
}

// 包 config 负责加载与校验任务配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验，替代散落在环境变量里的隐式配置。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvDSN 可覆盖 DATABASE.dsn，避免把凭据写进配置文件。
const EnvDSN = "DETAIL_SCRAPER_DSN"

// Config 为抓取任务的完整配置，构造编排器时显式传入。
type Config struct {
	Database         Database `yaml:"DATABASE"`
	SourceTable      string   `yaml:"SOURCE_TABLE"`
	DestinationTable string   `yaml:"DESTINATION_TABLE"`
	PageSize         int      `yaml:"PAGE_SIZE"`
	SampleSize       int      `yaml:"SAMPLE_SIZE"`
	Fetch            Fetch    `yaml:"FETCH"`
	Pacing           Pacing   `yaml:"PACING"`
	Skip             Skip     `yaml:"SKIP"`
	MarkProcessed    bool     `yaml:"MARK_PROCESSED"`
	DryRun           bool     `yaml:"DRY_RUN"`
	DryRunOutput     string   `yaml:"DRY_RUN_OUTPUT"`
	LogLevel         string   `yaml:"LOG_LEVEL"`
	LogFormat        string   `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale        string   `yaml:"LOG_LOCALE"` // zh-CN|en|ja
	LogColor         string   `yaml:"LOG_COLOR"`  // auto|always|never
}

type Database struct {
	Type     string `yaml:"type"` // sqlite (default) | postgres
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

type Fetch struct {
	TimeoutSec int    `yaml:"timeout_sec"`
	ProxyHTTP  string `yaml:"proxy_http"`
	ProxyHTTPS string `yaml:"proxy_https"`
}

// Pacing 单位均为秒，允许小数。0 表示使用默认值；
// max_sec 为负数时不做逐条等待，cadence 为负数时不做长休息。
type Pacing struct {
	MinSec         float64 `yaml:"min_sec"`
	MaxSec         float64 `yaml:"max_sec"`
	Cadence        int     `yaml:"cadence"`
	CooldownMinSec float64 `yaml:"cooldown_min_sec"`
	CooldownMaxSec float64 `yaml:"cooldown_max_sec"`
}

// Skip 决定哪些来源记录不再抓取：
// - none：全部抓取
// - existing：目标表已存在的 URL 跳过
// - fresh：FreshDays 天内抓取过的跳过
type Skip struct {
	Mode      string `yaml:"mode"`
	FreshDays int    `yaml:"fresh_days"`
}

const (
	SkipNone     = "none"
	SkipExisting = "existing"
	SkipFresh    = "fresh"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Load 从文件读取 YAML 并反序列化为 Config，同时进行基础校验与默认值填充。
// path 为空时直接使用默认值。
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDSN)); v != "" {
		c.Database.DSN = v
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
func (c *Config) Validate() error {
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.DSN == "" {
			c.Database.DSN = "./warehouse.db"
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("DATABASE.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 2
	}

	if c.SourceTable == "" {
		c.SourceTable = "source_urls"
	}
	if c.DestinationTable == "" {
		c.DestinationTable = "detail_info"
	}
	for _, t := range []string{c.SourceTable, c.DestinationTable} {
		if !identRe.MatchString(t) {
			return fmt.Errorf("invalid table name: %q", t)
		}
	}

	if c.PageSize < 0 || c.SampleSize < 0 {
		return errors.New("PAGE_SIZE and SAMPLE_SIZE must be >= 0")
	}
	if c.PageSize == 0 {
		c.PageSize = 100
	}

	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 20
	}

	p := &c.Pacing
	// max_sec < 0 关闭逐条等待；cadence < 0 关闭长休息
	if p.MaxSec >= 0 {
		if p.MinSec < 0 {
			return errors.New("PACING.min_sec must be >= 0")
		}
		if p.MinSec == 0 && p.MaxSec == 0 {
			p.MinSec, p.MaxSec = 3, 8
		}
		if p.MaxSec < p.MinSec {
			return fmt.Errorf("PACING.max_sec (%v) < min_sec (%v)", p.MaxSec, p.MinSec)
		}
	}
	if p.Cadence >= 0 {
		if p.CooldownMinSec < 0 || p.CooldownMaxSec < 0 {
			return errors.New("PACING cooldown values must be >= 0")
		}
		if p.Cadence == 0 {
			p.Cadence = 50
		}
		if p.CooldownMinSec == 0 && p.CooldownMaxSec == 0 {
			p.CooldownMinSec, p.CooldownMaxSec = 90, 150
		}
		if p.CooldownMaxSec < p.CooldownMinSec {
			return fmt.Errorf("PACING.cooldown_max_sec (%v) < cooldown_min_sec (%v)", p.CooldownMaxSec, p.CooldownMinSec)
		}
	}

	c.Skip.Mode = strings.ToLower(strings.TrimSpace(c.Skip.Mode))
	switch c.Skip.Mode {
	case "":
		c.Skip.Mode = SkipNone
	case SkipNone, SkipExisting, SkipFresh:
	default:
		return fmt.Errorf("unsupported SKIP.mode: %s", c.Skip.Mode)
	}
	if c.Skip.FreshDays < 0 {
		return errors.New("SKIP.fresh_days must be >= 0")
	}
	if c.Skip.FreshDays == 0 {
		c.Skip.FreshDays = 7
	}

	if c.DryRunOutput == "" {
		c.DryRunOutput = "details.json"
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

// FetchTimeout 返回单次抓取的超时时间。
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// FreshWindow 返回 fresh 模式的时间窗口。
func (c *Config) FreshWindow() time.Duration {
	return time.Duration(c.Skip.FreshDays) * 24 * time.Hour
}

// ItemDelay 返回逐条等待的区间，关闭时为 0, 0。
func (c *Config) ItemDelay() (time.Duration, time.Duration) {
	if c.Pacing.MaxSec < 0 {
		return 0, 0
	}
	return Seconds(c.Pacing.MinSec), Seconds(c.Pacing.MaxSec)
}

// Cooldown 返回长休息的间隔条数与时长区间，关闭时 every 为 0。
func (c *Config) Cooldown() (every int, lo, hi time.Duration) {
	if c.Pacing.Cadence < 0 {
		return 0, 0, 0
	}
	return c.Pacing.Cadence, Seconds(c.Pacing.CooldownMinSec), Seconds(c.Pacing.CooldownMaxSec)
}

// Seconds 将可带小数的秒数转换为 time.Duration。
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

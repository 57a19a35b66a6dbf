// 命令行入口：
// - run：读取来源表一页（或随机抽样），逐条抓取详情页并批量写入目标表
// - seed：从订阅或 URL 列表补充来源表
// - export：把目标表导出为 JSON
// - extract：对单个本地文件或 URL 做字段抽取调试
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"detail-scraper/internal/config"
	"detail-scraper/internal/fetch"
	"detail-scraper/internal/logx"
	"detail-scraper/internal/rules"
)

var (
	configPath string
	rulesPath  string
	presetName string
)

var rootCmd = &cobra.Command{
	Use:           "detail-scraper",
	Short:         "Batch scraper for tag detail pages backed by a URL warehouse.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "settings.yaml", "path to settings.yaml (empty for defaults)")
	pf.StringVar(&rulesPath, "rules", "rules.yaml", "path to rules.yaml (optional)")
	pf.StringVar(&presetName, "preset", "default", "selector preset name in rules.yaml")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setup 加载配置并初始化日志；配置文件缺失时退回默认值。
func setup() (*config.Config, error) {
	path := configPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)
	if path == "" && configPath != "" {
		logx.Warnf("未找到配置文件 %s，使用默认配置", configPath)
	}
	return cfg, nil
}

// loadPreset 读取 rules.yaml 中的选择器预设；文件不存在或未命中时使用内置默认。
func loadPreset() rules.Preset {
	if rulesPath == "" {
		return rules.Default()
	}
	if _, err := os.Stat(rulesPath); err != nil {
		return rules.Default()
	}
	rl, err := rules.Load(rulesPath)
	if err != nil {
		logx.Warnf("加载规则失败，使用内置选择器：%v", err)
		return rules.Default()
	}
	p, ok := rl.GetPreset(presetName)
	if !ok {
		logx.Warnf("规则中没有预设 %q，使用内置选择器", presetName)
	}
	return p
}

func newClient(cfg *config.Config) (*fetch.Client, error) {
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Fetch.ProxyHTTP,
		ProxyHTTPS: cfg.Fetch.ProxyHTTPS,
		Timeout:    cfg.FetchTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}
	return cl, nil
}

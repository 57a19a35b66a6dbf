package logx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPretty_LocaleLabels(t *testing.T) {
	cases := map[string]string{
		"zh-CN": "[信息]",
		"ja":    "[情報]",
		"en":    "[INFO]",
		"fr":    "[INFO]",
	}
	for locale, want := range cases {
		var buf bytes.Buffer
		New(&buf, "info", "pretty", locale, "never").Info("hello")
		assert.Contains(t, buf.String(), want, locale)
	}
}

func TestPretty_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "pretty", "en", "never")
	l.Info("should not print")
	l.Warn("warn on")
	out := buf.String()
	assert.NotContains(t, out, "should not print")
	assert.Contains(t, out, "[WARN] warn on")
}

func TestPretty_Silent(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "off", "pretty", "en", "never").Error("boom")
	assert.Empty(t, buf.String())
}

func TestPretty_AttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", "pretty", "en", "never").With("batch", 3).WithGroup("item")
	l.Debug("fetched", "idx", 1)
	out := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(out, "[DEBUG] fetched batch=3 item.idx=1"), out)
}

func TestPretty_Color(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	New(&buf, "info", "pretty", "en", "always").Error("x")
	assert.Contains(t, buf.String(), "\x1b[31m[ERROR]\x1b[0m")

	t.Setenv("NO_COLOR", "1")
	buf.Reset()
	New(&buf, "info", "pretty", "en", "always").Error("x")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "json", "en", "never").Info("ok", "n", 2)
	require.Contains(t, buf.String(), `"msg":"ok"`)
	assert.Contains(t, buf.String(), `"n":2`)
}

func TestInitSetsDefault(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)
	Init("error", "text", "en", "never")
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}

package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detail-scraper/internal/rules"
)

func TestLoad_FillsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
default:
  info_panel: "section.info"
  stats:
    strategy: POSITION
    list: "ul.stats li"
legacy:
  container: main
`), 0o644))

	r, err := rules.Load(p)
	require.NoError(t, err)

	d, ok := r.GetPreset("")
	require.True(t, ok)
	assert.Equal(t, "article", d.Container)
	assert.Equal(t, "section.info", d.InfoPanel)
	assert.Equal(t, rules.StrategyPosition, d.Stats.Strategy)
	assert.Equal(t, "ul.stats li", d.Stats.List)
	assert.Equal(t, "閲覧数", d.Stats.ViewLabel)
	assert.Equal(t, []string{"li", "a"}, d.Stats.Tags)
	require.NotNil(t, d.Stats.ViewIndex)
	require.NotNil(t, d.Stats.CommentIndex)
	require.NotNil(t, d.Stats.WorksIndex)
	assert.Equal(t, 0, *d.Stats.ViewIndex)
	assert.Equal(t, 1, *d.Stats.CommentIndex)
	assert.Equal(t, 2, *d.Stats.WorksIndex)

	l, ok := r.GetPreset("LEGACY")
	require.True(t, ok)
	assert.Equal(t, "main", l.Container)
	assert.Equal(t, "div.w-full", l.InfoPanel)
}

func TestLoad_ExplicitZeroIndexKept(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
default:
  stats:
    strategy: position
    list: "ul.stats li"
    view_index: 2
    comment_index: 1
    works_index: 0
`), 0o644))
	r, err := rules.Load(p)
	require.NoError(t, err)
	d, _ := r.GetPreset("default")
	assert.Equal(t, 2, rules.Index(d.Stats.ViewIndex))
	assert.Equal(t, 1, rules.Index(d.Stats.CommentIndex))
	assert.Equal(t, 0, rules.Index(d.Stats.WorksIndex))
}

func TestLoad_RejectsBadPositionPresets(t *testing.T) {
	cases := map[string]string{
		"colliding indices": "default:\n  stats:\n    strategy: position\n    list: li\n    works_index: 0\n",
		"position no list":  "default:\n  stats:\n    strategy: position\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "rules.yaml")
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
			_, err := rules.Load(p)
			assert.Error(t, err)
		})
	}
}

func TestDefault_HasNoStatsList(t *testing.T) {
	d := rules.Default().WithDefaults()
	assert.Empty(t, d.Stats.List)
	assert.Equal(t, -1, rules.Index(nil))
	assert.NoError(t, d.Validate())
}

func TestLoad_RejectsUnknownStrategy(t *testing.T) {
	p := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(p, []byte("default:\n  stats:\n    strategy: guess\n"), 0o644))
	_, err := rules.Load(p)
	assert.Error(t, err)
}

func TestGetPreset_Fallbacks(t *testing.T) {
	var nilRules *rules.Rules
	p, ok := nilRules.GetPreset("anything")
	assert.False(t, ok)
	assert.Equal(t, rules.Default().Container, p.Container)

	r := &rules.Rules{Presets: map[string]rules.Preset{
		"Default": rules.Preset{Container: "main"}.WithDefaults(),
	}}
	p, ok = r.GetPreset("missing")
	assert.True(t, ok)
	assert.Equal(t, "main", p.Container)
}

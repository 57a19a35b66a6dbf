package export_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detail-scraper/internal/export"
	"detail-scraper/internal/model"
)

type lister []model.DetailRecord

func (l lister) ListDetails(context.Context) ([]model.DetailRecord, error) { return l, nil }

func readExport(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestJSONWriter_WritesNullForMissingStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.json")
	w := export.JSONWriter{Path: path}
	rowErrs, err := w.InsertDetails(context.Background(), []model.DetailRecord{
		{URL: "https://e/1", ViewCount: model.Int64Ptr(0), LoadedAt: time.Now()},
		{URL: "https://e/2", LoadedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.Empty(t, rowErrs)

	out := readExport(t, path)
	stats := out["stats"].(map[string]any)
	assert.EqualValues(t, 2, stats["details_total"])
	assert.EqualValues(t, 1, stats["with_views"])
	details := out["details"].([]any)
	require.Len(t, details, 2)
	first := details[0].(map[string]any)
	second := details[1].(map[string]any)
	assert.EqualValues(t, 0, first["view_count"])
	assert.Nil(t, second["view_count"])
	_, hasKey := second["view_count"]
	assert.True(t, hasKey, "missing stats are explicit nulls")
}

func TestJSONWriter_RowErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.json")
	rowErrs, err := export.JSONWriter{Path: path}.InsertDetails(context.Background(), []model.DetailRecord{{}})
	require.NoError(t, err)
	require.Len(t, rowErrs, 1)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestToJSON_Limit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	n, err := export.ToJSON(context.Background(), lister{{URL: "a"}, {URL: "b"}, {URL: "c"}}, path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	out := readExport(t, path)
	assert.Len(t, out["details"].([]any), 2)

	n, err = export.ToJSON(context.Background(), lister(nil), path, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	out = readExport(t, path)
	assert.Empty(t, out["details"].([]any))
}

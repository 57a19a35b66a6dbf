package dedup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"detail-scraper/internal/dedup"
	"detail-scraper/internal/model"
)

func TestFilter_PreservesOrder(t *testing.T) {
	got := dedup.Filter([]string{"A", "B", "C"}, map[string]struct{}{"B": {}})
	assert.Equal(t, []string{"A", "C"}, got)
}

func TestFilter_CollapsesDuplicates(t *testing.T) {
	got := dedup.Filter([]string{"C", "A", "C", "B"}, nil)
	assert.Equal(t, []string{"C", "A", "B"}, got)
	assert.Empty(t, dedup.Filter(nil, nil))
}

func TestScrapedWithin(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	old := now.Add(-8 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)
	recs := []model.SourceRecord{
		{URL: "old", LastScrapedAt: &old},
		{URL: "recent", LastScrapedAt: &recent},
		{URL: "never"},
	}
	kept, skipped := dedup.Apply(recs, dedup.ScrapedWithin(7*24*time.Hour, now))
	assert.Equal(t, []string{"old", "never"}, dedup.URLs(kept))
	assert.Equal(t, 1, skipped)
}

func TestApply_AlreadyDoneAndAny(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Hour)
	recs := []model.SourceRecord{
		{URL: "A"}, {URL: "B"}, {URL: "C", LastScrapedAt: &recent}, {URL: "A"}, {URL: ""},
	}
	skip := dedup.Any(
		dedup.AlreadyDone(map[string]struct{}{"B": {}}),
		dedup.ScrapedWithin(24*time.Hour, now),
		nil,
	)
	kept, skipped := dedup.Apply(recs, skip)
	assert.Equal(t, []string{"A"}, dedup.URLs(kept))
	assert.Equal(t, 4, skipped)
}

func TestApply_NilSkip(t *testing.T) {
	kept, skipped := dedup.Apply([]model.SourceRecord{{URL: "x"}}, nil)
	assert.Len(t, kept, 1)
	assert.Zero(t, skipped)
}

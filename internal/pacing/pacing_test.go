package pacing_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detail-scraper/internal/pacing"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestNextDelay_WithinBounds(t *testing.T) {
	p := pacing.Default()
	p.Rand = rand.New(rand.NewSource(1))
	for i := 1; i <= 500; i++ {
		d := p.NextDelay(i, 500)
		require.GreaterOrEqual(t, d, 3*time.Second)
		require.LessOrEqual(t, d, 8*time.Second)
	}
}

func TestNextDelay_Endpoints(t *testing.T) {
	p := pacing.Default()
	p.Rand = fixedRand(0)
	assert.Equal(t, 3*time.Second, p.NextDelay(1, 1))
	p.Rand = fixedRand(0.5)
	assert.Equal(t, 5500*time.Millisecond, p.NextDelay(1, 1))
	p.Rand = fixedRand(0.999999)
	assert.Equal(t, 8*time.Second, p.NextDelay(1, 1))
}

func TestCooldownDue(t *testing.T) {
	p := pacing.Default()
	p.Rand = rand.New(rand.NewSource(7))

	d, ok := p.CooldownDue(50)
	require.True(t, ok)
	assert.GreaterOrEqual(t, d, 90*time.Second)
	assert.LessOrEqual(t, d, 150*time.Second)

	_, ok = p.CooldownDue(49)
	assert.False(t, ok)
	_, ok = p.CooldownDue(0)
	assert.False(t, ok)
	_, ok = p.CooldownDue(100)
	assert.True(t, ok)

	p.Cadence = 0
	_, ok = p.CooldownDue(50)
	assert.False(t, ok)
}

func TestDegenerateInterval(t *testing.T) {
	p := pacing.Policy{Min: 2 * time.Second, Max: 2 * time.Second, Rand: fixedRand(0.7)}
	assert.Equal(t, 2*time.Second, p.NextDelay(1, 1))
	assert.Equal(t, time.Duration(0), pacing.Policy{}.NextDelay(1, 1))
}

func TestContextSleeper(t *testing.T) {
	s := pacing.ContextSleeper{}
	require.NoError(t, s.Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := s.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRecordingSleeper(t *testing.T) {
	var r pacing.RecordingSleeper
	require.NoError(t, r.Sleep(context.Background(), time.Second))
	require.NoError(t, r.Sleep(context.Background(), 2*time.Second))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, r.Slept)
	assert.Equal(t, 3*time.Second, r.Total())
}

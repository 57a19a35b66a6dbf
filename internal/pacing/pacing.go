// 包 pacing 决定相邻请求之间的等待时长以及周期性的长休息，降低对目标站点的持续压力。
// Policy 只依赖计数器与注入的随机源；真正的等待由 Sleeper 完成，测试中可替换。
package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Rand 为均匀分布 [0,1) 的随机源，*rand.Rand 即满足。
type Rand interface {
	Float64() float64
}

// Policy 为节奏策略：
// - 每条之前等待 [Min, Max] 内的均匀随机时长
// - 每处理完 Cadence 条后追加一次 [CooldownMin, CooldownMax] 的长休息
type Policy struct {
	Min, Max                 time.Duration
	Cadence                  int
	CooldownMin, CooldownMax time.Duration
	Rand                     Rand
}

// Default 返回常用参数：3–8 秒，每 50 条休息 90–150 秒。
func Default() Policy {
	return Policy{
		Min:         3 * time.Second,
		Max:         8 * time.Second,
		Cadence:     50,
		CooldownMin: 90 * time.Second,
		CooldownMax: 150 * time.Second,
	}
}

// NextDelay 返回第 index 条（从 1 开始，共 total 条）之前的等待时长。
// 当前与 index/total 无关，参数保留给按进度调整的策略。
func (p Policy) NextDelay(index, total int) time.Duration {
	return p.uniform(p.Min, p.Max)
}

// CooldownDue 在第 index 条处理完后判断是否需要长休息。
func (p Policy) CooldownDue(index int) (time.Duration, bool) {
	if p.Cadence <= 0 || index <= 0 || index%p.Cadence != 0 {
		return 0, false
	}
	return p.uniform(p.CooldownMin, p.CooldownMax), true
}

// uniform 取 [lo, hi] 内均匀随机值，保留到 10ms。
func (p Policy) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	f := p.float()
	d := lo + time.Duration(f*float64(hi-lo))
	d = d.Round(10 * time.Millisecond)
	if d < lo {
		d = lo
	}
	if d > hi {
		d = hi
	}
	return d
}

func (p Policy) float() float64 {
	if p.Rand != nil {
		return p.Rand.Float64()
	}
	return rand.Float64()
}

// Sleeper 执行实际等待。
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ContextSleeper 为生产实现：等待 d 或直到 ctx 结束。
type ContextSleeper struct{}

func (ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordingSleeper 只记录请求的时长，不真正等待。
type RecordingSleeper struct {
	Slept []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.Slept = append(r.Slept, d)
	return ctx.Err()
}

// Total 返回累计请求的等待时长。
func (r *RecordingSleeper) Total() time.Duration {
	var sum time.Duration
	for _, d := range r.Slept {
		sum += d
	}
	return sum
}

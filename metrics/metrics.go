package metrics

import (
	"math"
	"math/rand/v2"
	"time"
)

// DefaultSpan 滑动窗口长度
const DefaultSpan = time.Second

// Sample 一个带时间戳的采样
type Sample struct {
	Value float64
	At    time.Time
}

// Window 只保留最近 span 内的采样，求平均。不是并发安全的。
type Window struct {
	span    time.Duration
	samples []Sample
}

func NewWindow(span time.Duration) *Window {
	if span <= 0 {
		span = DefaultSpan
	}
	return &Window{span: span}
}

// Push 加入采样并淘汰不晚于 at-span 的旧采样
func (w *Window) Push(v float64, at time.Time) {
	w.samples = append(w.samples, Sample{Value: v, At: at})
	w.evict(at)
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.samples) && !w.samples[i].At.After(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}

// Average 窗口内为空时返回 false
func (w *Window) Average() (float64, bool) {
	if len(w.samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range w.samples {
		sum += s.Value
	}
	return sum / float64(len(w.samples)), true
}

func (w *Window) Len() int {
	return len(w.samples)
}

// Snapshot 平滑后的指标。Load 是按帧率估算的装饰性数值，不是硬件读数。
type Snapshot struct {
	FPS     float64   `json:"fps"`
	Load    float64   `json:"load"`
	Samples int       `json:"samples"`
	At      time.Time `json:"at"`
}

// NoiseFunc 返回 [-5, 5) 内的抖动
type NoiseFunc func() float64

// UniformNoise 默认抖动
func UniformNoise() float64 {
	return rand.Float64()*10 - 5
}

// SyntheticLoad 20 + max(0, (60-fps)/2) + noise，截断到 [0, 100]。
// 只用于界面展示，和真实的 GPU 占用没有关系。
func SyntheticLoad(fps, noise float64) float64 {
	v := 20 + math.Max(0, (60-fps)/2) + noise
	return math.Min(100, math.Max(0, v))
}

// Frame 每帧调用一次 Tick，只在帧循环的 goroutine 里使用
type Frame struct {
	fps   *Window
	load  *Window
	noise NoiseFunc
	last  time.Time
	snap  Snapshot
}

func NewFrame(noise NoiseFunc) *Frame {
	if noise == nil {
		noise = UniformNoise
	}
	return &Frame{
		fps:   NewWindow(DefaultSpan),
		load:  NewWindow(DefaultSpan),
		noise: noise,
	}
}

// Tick 记录一帧。第一帧和时间没有前进的帧不产生 FPS 采样。
func (f *Frame) Tick(now time.Time) Snapshot {
	if !f.last.IsZero() {
		if dt := now.Sub(f.last); dt > 0 {
			f.fps.Push(1/dt.Seconds(), now)
			f.load.Push(SyntheticLoad(f.snap.FPS, f.noise()), now)
		}
	}
	f.last = now

	if v, ok := f.fps.Average(); ok {
		f.snap.FPS = v
	}
	if v, ok := f.load.Average(); ok {
		f.snap.Load = v
	}
	f.snap.Samples = f.fps.Len()
	f.snap.At = now
	return f.snap
}

// Snapshot 最近一次 Tick 的结果
func (f *Frame) Snapshot() Snapshot {
	return f.snap
}

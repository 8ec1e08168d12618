package metrics

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestWindow_Expiry(t *testing.T) {
	t.Parallel()

	w := NewWindow(time.Second)
	_, ok := w.Average()
	assert.False(t, ok)

	w.Push(10, t0)
	w.Push(20, t0.Add(500*time.Millisecond))
	avg, ok := w.Average()
	require.True(t, ok)
	assert.InDelta(t, 15, avg, 1e-9)

	// 正好一秒前的采样也被淘汰
	w.Push(30, t0.Add(time.Second))
	avg, _ = w.Average()
	assert.InDelta(t, 25, avg, 1e-9)
	assert.Equal(t, 2, w.Len())

	w.Push(40, t0.Add(3*time.Second))
	avg, _ = w.Average()
	assert.InDelta(t, 40, avg, 1e-9)
	assert.Equal(t, 1, w.Len())
}

func TestSyntheticLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fps, noise, want float64
	}{
		{fps: 60, noise: 0, want: 20},
		{fps: 120, noise: 0, want: 20},
		{fps: 30, noise: 0, want: 35},
		{fps: 0, noise: 4.9, want: 54.9},
		{fps: 60, noise: -5, want: 15},
		{fps: -1000, noise: 0, want: 100},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SyntheticLoad(tt.fps, tt.noise), 1e-9)
	}
	for fps := -200.0; fps < 300; fps += 7 {
		v := SyntheticLoad(fps, UniformNoise())
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestUniformNoise_Range(t *testing.T) {
	t.Parallel()

	for i := 0; i < 1000; i++ {
		v := UniformNoise()
		assert.GreaterOrEqual(t, v, -5.0)
		assert.Less(t, v, 5.0)
	}
}

func TestFrame_Tick(t *testing.T) {
	t.Parallel()

	f := NewFrame(func() float64 { return 0 })

	s := f.Tick(t0)
	assert.Zero(t, s.FPS)
	assert.Zero(t, s.Samples)

	// 20ms 一帧 = 50fps
	now := t0
	for i := 0; i < 10; i++ {
		now = now.Add(20 * time.Millisecond)
		s = f.Tick(now)
	}
	assert.InDelta(t, 50, s.FPS, 1e-6)
	assert.Equal(t, 10, s.Samples)
	// 第一次负载采样用的是 0fps：20+30；之后是 20+5
	assert.InDelta(t, (50.0+9*25)/10, s.Load, 1e-6)
	assert.Equal(t, now, s.At)
	assert.Equal(t, s, f.Snapshot())
}

func TestFrame_NonAdvancingClock(t *testing.T) {
	t.Parallel()

	f := NewFrame(func() float64 { return 0 })
	f.Tick(t0)
	f.Tick(t0.Add(10 * time.Millisecond))
	s := f.Tick(t0.Add(10 * time.Millisecond))
	assert.Equal(t, 1, s.Samples)
	assert.InDelta(t, 100, s.FPS, 1e-6)

	s = f.Tick(t0)
	assert.Equal(t, 1, s.Samples)
}

func TestLatest(t *testing.T) {
	t.Parallel()

	var l Latest
	assert.Equal(t, Snapshot{}, l.Load())
	l.Store(Snapshot{FPS: 30, At: t0})
	assert.InDelta(t, 30, l.Load().FPS, 1e-9)
}

func TestReporter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var l Latest
	r, err := NewReporter("", l.Load, logger)
	require.NoError(t, err)

	r.Report()
	assert.Contains(t, buf.String(), "no frames yet")

	l.Store(Snapshot{FPS: 29.97, Load: 35.2, Samples: 30, At: t0})
	r.Report()
	assert.Contains(t, buf.String(), "fps=30.0")
	assert.Contains(t, buf.String(), "load=35.2%")

	r.Start()
	r.Stop()

	_, err = NewReporter("not a schedule", l.Load, logger)
	assert.Error(t, err)
}

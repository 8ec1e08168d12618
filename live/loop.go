package live

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chaos-io/brandcam/segment"
)

// DefaultInterval 约 30fps
const DefaultInterval = time.Second / 30

// FrameSink 接收合成好的帧
type FrameSink interface {
	Present(frame *image.RGBA) error
}

// SinkFunc 让普通函数满足 FrameSink
type SinkFunc func(frame *image.RGBA) error

func (f SinkFunc) Present(frame *image.RGBA) error {
	return f(frame)
}

// Loop 每个 tick 至多合成一帧。
// 有新的摄像头帧，或背景、模式变化时才重新合成；同时把新帧交给推理端，不等待结果。
type Loop struct {
	comp     *Compositor
	source   *FrameBuffer
	sink     FrameSink
	interval time.Duration
	infer    atomic.Pointer[segment.Slot[image.Image]]
	logger   *slog.Logger

	lastSeq     uint64
	lastVersion uint64
	rendered    bool
}

func NewLoop(comp *Compositor, source *FrameBuffer, sink FrameSink, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		comp:     comp,
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger,
	}
}

// FeedInference 新帧同时发布到推理端的帧槽，Run 之后调用也安全
func (l *Loop) FeedInference(frames *segment.Slot[image.Image]) {
	l.infer.Store(frames)
}

// Run 直到 ctx 结束
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("frame loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("frame loop stopped", "frames", l.lastSeq)
			return nil
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}

// Step 执行一次合成，返回是否输出了新帧
func (l *Loop) Step(now time.Time) bool {
	frame, seq, fresh := l.source.ReadIfNew(l.lastSeq)
	version := l.comp.Version()
	if !fresh {
		if !l.rendered || version == l.lastVersion {
			return false
		}
		frame = l.source.Latest()
		if frame == nil {
			return false
		}
	} else {
		l.lastSeq = seq
		if infer := l.infer.Load(); infer != nil {
			infer.Publish(frame)
		}
	}
	l.lastVersion = version

	out := l.comp.Render(frame, now)
	l.rendered = true
	if err := l.sink.Present(out); err != nil {
		l.logger.Warn("present frame failed", "err", err)
	}
	return true
}

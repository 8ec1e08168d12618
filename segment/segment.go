package segment

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrUnavailable 暂时没有遮罩，不算失败，合成端沿用上一张遮罩
var ErrUnavailable = errors.New("segmentation unavailable")

// Provider 从一帧图像推理出前景遮罩，可能比帧率慢
type Provider interface {
	Infer(ctx context.Context, frame image.Image) (*image.Alpha, error)
}

// ProviderFunc 让普通函数满足 Provider
type ProviderFunc func(ctx context.Context, frame image.Image) (*image.Alpha, error)

func (f ProviderFunc) Infer(ctx context.Context, frame image.Image) (*image.Alpha, error) {
	return f(ctx, frame)
}

// Worker 从 frames 取最新帧推理，把遮罩发布到 masks。
// 帧循环只往 frames 里 Publish，从不等待推理。
type Worker struct {
	provider Provider
	frames   *Slot[image.Image]
	masks    *Slot[*image.Alpha]
	timeout  time.Duration
	logger   *slog.Logger

	inferred    atomic.Uint64
	unavailable atomic.Uint64
	failed      atomic.Uint64
}

func NewWorker(p Provider, frames *Slot[image.Image], masks *Slot[*image.Alpha], timeout time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		provider: p,
		frames:   frames,
		masks:    masks,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run 直到 ctx 结束
func (w *Worker) Run(ctx context.Context) error {
	for {
		frame, err := w.frames.Take(ctx)
		if err != nil {
			return nil
		}
		w.step(ctx, frame)
	}
}

func (w *Worker) step(ctx context.Context, frame image.Image) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	mask, err := w.provider.Infer(ctx, frame)
	switch {
	case errors.Is(err, ErrUnavailable):
		w.unavailable.Add(1)
		w.logger.Debug("mask not ready")
	case err != nil:
		w.failed.Add(1)
		w.logger.Warn("segmentation failed", "err", err)
	case mask == nil:
		w.unavailable.Add(1)
	default:
		w.inferred.Add(1)
		w.masks.Publish(mask)
		w.logger.Debug("mask published", "elapsed", time.Since(start))
	}
}

type WorkerStats struct {
	Inferred    uint64    `json:"inferred"`
	Unavailable uint64    `json:"unavailable"`
	Failed      uint64    `json:"failed"`
	Frames      SlotStats `json:"frames"`
}

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Inferred:    w.inferred.Load(),
		Unavailable: w.unavailable.Load(),
		Failed:      w.failed.Load(),
		Frames:      w.frames.Stats(),
	}
}

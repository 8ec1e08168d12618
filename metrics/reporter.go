package metrics

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule 默认每 30 秒输出一次
const DefaultSchedule = "@every 30s"

// Latest 跨 goroutine 共享最近一次快照，帧循环写、其他地方读
type Latest struct {
	p atomic.Pointer[Snapshot]
}

func (l *Latest) Store(s Snapshot) {
	l.p.Store(&s)
}

// Load 还没有写入时返回零值
func (l *Latest) Load() Snapshot {
	if s := l.p.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Reporter 按 cron 表达式定期把指标写进日志
type Reporter struct {
	cron   *cron.Cron
	source func() Snapshot
	logger *slog.Logger
}

func NewReporter(schedule string, source func() Snapshot, logger *slog.Logger) (*Reporter, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reporter{
		cron:   cron.New(),
		source: source,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, fmt.Errorf("parse metrics schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Report 立即输出一次
func (r *Reporter) Report() {
	s := r.source()
	if s.At.IsZero() {
		r.logger.Info("frame metrics", "status", "no frames yet")
		return
	}
	r.logger.Info("frame metrics",
		"fps", fmt.Sprintf("%.1f", s.FPS),
		"load", fmt.Sprintf("%.1f%%", s.Load),
		"samples", s.Samples,
	)
}

func (r *Reporter) Start() {
	r.cron.Start()
}

// Stop 等待正在执行的任务结束
func (r *Reporter) Stop() {
	<-r.cron.Stop().Done()
}

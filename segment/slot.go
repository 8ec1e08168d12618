package segment

import (
	"context"
	"sync"
	"sync/atomic"
)

// Slot 单槽、新值覆盖旧值的交接点。
// Publish 永不阻塞，未被取走的旧值被覆盖时计入 Drops。
type Slot[T any] struct {
	mu     sync.Mutex
	val    T
	full   bool
	notify chan struct{}

	published atomic.Uint64
	drops     atomic.Uint64
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{notify: make(chan struct{}, 1)}
}

// Publish 放入最新值
func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	if s.full {
		s.drops.Add(1)
	}
	s.val = v
	s.full = true
	s.mu.Unlock()

	s.published.Add(1)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// TryTake 有值就取走，没有立即返回 false
func (s *Slot[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if !s.full {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.full = false
	return v, true
}

// Take 阻塞直到有值或 ctx 结束
func (s *Slot[T]) Take(ctx context.Context) (T, error) {
	for {
		if v, ok := s.TryTake(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-s.notify:
		}
	}
}

// SlotStats 计数快照
type SlotStats struct {
	Published uint64 `json:"published"`
	Drops     uint64 `json:"drops"`
}

func (s *Slot[T]) Stats() SlotStats {
	return SlotStats{Published: s.published.Load(), Drops: s.drops.Load()}
}

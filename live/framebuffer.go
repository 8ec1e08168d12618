package live

import (
	"image"
	"sync"
	"time"
)

// FrameBuffer 只保存最新一帧，写入方覆盖，读取方按序号判断是否有新帧
type FrameBuffer struct {
	mu    sync.RWMutex
	frame image.Image
	seq   uint64
	at    time.Time
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Write 写入后调用方不应再修改 img
func (fb *FrameBuffer) Write(img image.Image) {
	fb.mu.Lock()
	fb.frame = img
	fb.seq++
	fb.at = time.Now()
	fb.mu.Unlock()
}

// ReadIfNew 序号大于 lastSeq 时返回新帧
func (fb *FrameBuffer) ReadIfNew(lastSeq uint64) (image.Image, uint64, bool) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	if fb.frame == nil || fb.seq <= lastSeq {
		return nil, lastSeq, false
	}
	return fb.frame, fb.seq, true
}

// Latest 最新一帧，没有时返回 nil
func (fb *FrameBuffer) Latest() image.Image {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.frame
}

func (fb *FrameBuffer) Count() uint64 {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.seq
}

func (fb *FrameBuffer) LastFrameTime() time.Time {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.at
}

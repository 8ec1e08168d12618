package segment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_LatestWins(t *testing.T) {
	t.Parallel()

	s := NewSlot[int]()
	_, ok := s.TryTake()
	assert.False(t, ok)

	s.Publish(1)
	s.Publish(2)
	s.Publish(3)

	v, ok := s.TryTake()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = s.TryTake()
	assert.False(t, ok)

	assert.Equal(t, SlotStats{Published: 3, Drops: 2}, s.Stats())
}

func TestSlot_TakeBlocksUntilPublish(t *testing.T) {
	t.Parallel()

	s := NewSlot[string]()
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Publish("mask")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := s.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mask", v)
}

func TestSlot_TakeHonoursContext(t *testing.T) {
	t.Parallel()

	s := NewSlot[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlot_ConcurrentPublish(t *testing.T) {
	t.Parallel()

	s := NewSlot[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Publish(j)
			}
		}()
	}
	wg.Wait()

	_, ok := s.TryTake()
	assert.True(t, ok)
	st := s.Stats()
	assert.Equal(t, uint64(800), st.Published)
	assert.Equal(t, uint64(799), st.Drops)
}

func TestWorker_PublishesMasks(t *testing.T) {
	t.Parallel()

	frames := NewSlot[image.Image]()
	masks := NewSlot[*image.Alpha]()

	var calls int
	var mu sync.Mutex
	provider := ProviderFunc(func(ctx context.Context, frame image.Image) (*image.Alpha, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		switch calls {
		case 1:
			return nil, ErrUnavailable
		case 2:
			return nil, errors.New("model crashed")
		}
		return image.NewAlpha(frame.Bounds()), nil
	})

	w := NewWorker(provider, frames, masks, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	frame := image.NewRGBA(image.Rect(0, 0, 8, 6))
	deadline, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dcancel()

	var mask *image.Alpha
	for mask == nil {
		frames.Publish(frame)
		select {
		case <-deadline.Done():
			t.Fatal("no mask published")
		case <-time.After(5 * time.Millisecond):
		}
		if m, ok := masks.TryTake(); ok {
			mask = m
		}
	}
	assert.Equal(t, frame.Bounds(), mask.Bounds())

	cancel()
	require.NoError(t, <-done)

	st := w.Stats()
	assert.Equal(t, uint64(1), st.Unavailable)
	assert.Equal(t, uint64(1), st.Failed)
	assert.GreaterOrEqual(t, st.Inferred, uint64(1))
}

func TestRemote_Infer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		file, _, err := r.FormFile("image")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		frame, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)

		// 左半边为前景
		b := frame.Bounds()
		mask := image.NewGray(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Dx()/2; x++ {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, mask)
	}))
	defer server.Close()

	frame := image.NewRGBA(image.Rect(0, 0, 10, 4))
	mask, err := NewRemote(server.URL, nil, nil).Infer(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 4), mask.Bounds())
	assert.Equal(t, uint8(255), mask.AlphaAt(1, 1).A)
	assert.Equal(t, uint8(0), mask.AlphaAt(8, 1).A)
}

func TestRemote_Unavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "warming up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewRemote(server.URL, nil, nil).Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 2, 2)))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRemote_BadBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("nope"))
	}))
	defer server.Close()

	_, err := NewRemote(server.URL, nil, nil).Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 2, 2)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

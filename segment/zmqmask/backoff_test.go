package zmqmask

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	t.Parallel()

	var b backoff
	var got []time.Duration
	var logged []int
	for i := 1; i <= 8; i++ {
		got = append(got, b.next())
		if b.shouldLog() {
			logged = append(logged, i)
		}
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond,
		1600 * time.Millisecond, 2 * time.Second, 2 * time.Second, 2 * time.Second,
	}, got)
	assert.Equal(t, []int{1, 2, 4, 8}, logged)

	b.reset()
	assert.Equal(t, minRetryDelay, b.next())
	assert.True(t, b.shouldLog())
}

func TestWait(t *testing.T) {
	t.Parallel()

	assert.True(t, wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.False(t, wait(ctx, time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}

//go:build !nozmq

package zmqmask

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/chaos-io/brandcam/segment"
)

// recvTimeout 让接收循环能定期检查 ctx
const recvTimeout = 250 * time.Millisecond

// Stream 连接外部推理进程的 PUSH 端，把收到的遮罩发布到 masks，直到 ctx 结束
func Stream(ctx context.Context, endpoint string, masks *segment.Slot[*image.Alpha], logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return err
	}
	defer func() {
		_ = socket.Close()
	}()
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		return err
	}
	if err := socket.Connect(endpoint); err != nil {
		return err
	}
	logger.Info("mask stream connected", "endpoint", endpoint)

	var received, skipped uint64
	var retry backoff
	for {
		select {
		case <-ctx.Done():
			logger.Info("mask stream stopped", "received", received, "skipped", skipped)
			return nil
		default:
		}

		msg, err := socket.RecvBytes(0)
		if err != nil {
			// 超时返回 EAGAIN
			errno := zmq4.AsErrno(err)
			if errno == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			// context 已被终止，socket 不会再恢复
			if errno == zmq4.ETERM {
				return fmt.Errorf("mask stream terminated: %w", err)
			}
			delay := retry.next()
			if retry.shouldLog() {
				logger.Warn("mask stream recv error", "err", err, "failures", retry.failures, "retry_in", delay)
			}
			if !wait(ctx, delay) {
				logger.Info("mask stream stopped", "received", received, "skipped", skipped)
				return nil
			}
			continue
		}
		retry.reset()

		mask, frameID, err := Decode(msg)
		if err != nil {
			skipped++
			if !errors.Is(err, ErrIgnored) {
				logger.Debug("mask message skipped", "err", err)
			}
			continue
		}
		received++
		masks.Publish(mask)
		logger.Debug("mask received", "frame_id", frameID, "size", mask.Bounds().Size())
	}
}

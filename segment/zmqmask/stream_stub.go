//go:build nozmq

package zmqmask

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/chaos-io/brandcam/segment"
)

func Stream(_ context.Context, _ string, _ *segment.Slot[*image.Alpha], _ *slog.Logger) error {
	return errors.New("zmq mask stream not enabled; build without -tags nozmq")
}

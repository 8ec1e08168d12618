package zmqmask

import (
	"errors"
	"fmt"
	"image"

	"github.com/fxamacker/cbor/v2"
)

const (
	// MessageType 遮罩消息的 type 字段
	MessageType = "mask"

	tagUint8 = 64
)

// Message 推理进程发来的 CBOR 消息：
// { "type": "mask", "frame_id": <uint>, "width": <int>, "height": <int>, "data": <bytes | tag 64> }
// data 按行存放，每像素一个字节，0 为背景、255 为前景。
type Message struct {
	Type    string          `cbor:"type"`
	FrameID uint64          `cbor:"frame_id,omitempty"`
	Width   int             `cbor:"width"`
	Height  int             `cbor:"height"`
	Data    cbor.RawMessage `cbor:"data"`
}

var ErrIgnored = errors.New("zmqmask: not a mask message")

// Decode 解析一条消息为遮罩，非 mask 类型返回 ErrIgnored
func Decode(msg []byte) (*image.Alpha, uint64, error) {
	var m Message
	if err := cbor.Unmarshal(msg, &m); err != nil {
		return nil, 0, fmt.Errorf("decode cbor: %w", err)
	}
	if m.Type != MessageType {
		return nil, 0, fmt.Errorf("%w: %q", ErrIgnored, m.Type)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, 0, fmt.Errorf("invalid mask size %dx%d", m.Width, m.Height)
	}

	data, err := extractBytes(m.Data)
	if err != nil {
		return nil, 0, err
	}
	if len(data) != m.Width*m.Height {
		return nil, 0, fmt.Errorf("mask data length %d, want %d", len(data), m.Width*m.Height)
	}

	mask := &image.Alpha{
		Pix:    data,
		Stride: m.Width,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
	return mask, m.FrameID, nil
}

func extractBytes(raw cbor.RawMessage) ([]byte, error) {
	var data []byte
	if err := cbor.Unmarshal(raw, &data); err == nil {
		return data, nil
	}
	var tag cbor.Tag
	if err := cbor.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("decode mask data: %w", err)
	}
	if tag.Number != tagUint8 {
		return nil, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}
	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, errors.New("typed array content is not a byte string")
	}
	return data, nil
}

// Encode 生成一条 mask 消息，供模拟器和测试使用
func Encode(mask *image.Alpha, frameID uint64) ([]byte, error) {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		off := y * mask.Stride
		data = append(data, mask.Pix[off:off+w]...)
	}
	raw, err := cbor.Marshal(data)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(Message{
		Type:    MessageType,
		FrameID: frameID,
		Width:   w,
		Height:  h,
		Data:    raw,
	})
}

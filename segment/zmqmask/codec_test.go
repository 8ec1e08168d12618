package zmqmask

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	mask := image.NewAlpha(image.Rect(0, 0, 3, 2))
	mask.SetAlpha(0, 0, color.Alpha{A: 255})
	mask.SetAlpha(2, 1, color.Alpha{A: 128})

	msg, err := Encode(mask, 42)
	require.NoError(t, err)

	got, frameID, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), frameID)
	assert.Equal(t, mask.Bounds(), got.Bounds())
	assert.Equal(t, mask.Pix, got.Pix)
}

func TestEncode_SubImage(t *testing.T) {
	t.Parallel()

	full := image.NewAlpha(image.Rect(0, 0, 4, 4))
	full.SetAlpha(2, 2, color.Alpha{A: 255})
	sub := full.SubImage(image.Rect(1, 1, 3, 3)).(*image.Alpha)

	msg, err := Encode(sub, 1)
	require.NoError(t, err)
	got, _, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 255}, got.Pix)
}

func TestDecode_TypedArray(t *testing.T) {
	t.Parallel()

	data, err := cbor.Marshal(cbor.Tag{Number: tagUint8, Content: []byte{1, 2, 3, 4}})
	require.NoError(t, err)
	msg, err := cbor.Marshal(Message{Type: MessageType, Width: 2, Height: 2, Data: data})
	require.NoError(t, err)

	got, _, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), got.AlphaAt(1, 1).A)
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()

	raw, err := cbor.Marshal([]byte{1, 2, 3})
	require.NoError(t, err)

	tests := []struct {
		name    string
		msg     Message
		ignored bool
	}{
		{name: "其他类型", msg: Message{Type: "status", Width: 1, Height: 3, Data: raw}, ignored: true},
		{name: "尺寸为零", msg: Message{Type: MessageType, Width: 0, Height: 3, Data: raw}},
		{name: "长度不符", msg: Message{Type: MessageType, Width: 2, Height: 2, Data: raw}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg, err := cbor.Marshal(tt.msg)
			require.NoError(t, err)
			_, _, err = Decode(msg)
			require.Error(t, err)
			assert.Equal(t, tt.ignored, errors.Is(err, ErrIgnored))
		})
	}

	_, _, err = Decode([]byte{0xff, 0x00})
	assert.Error(t, err)
}

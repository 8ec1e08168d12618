package qr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"
	xdraw "golang.org/x/image/draw"
)

// ErrEmptyText 没有可编码的内容
var ErrEmptyText = errors.New("qr: empty text")

// Generator 把文本编码为 sizePx*sizePx 的二维码图片
type Generator interface {
	Encode(ctx context.Context, text string, sizePx int) (image.Image, error)
}

// Encoder 基于 go-qrcode，纠错等级最高，白底黑码
type Encoder struct {
	// ModuleWidth 每个码元渲染的像素数，最终会再缩放到目标尺寸
	ModuleWidth uint8
}

func NewEncoder() *Encoder {
	return &Encoder{ModuleWidth: 8}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func (e *Encoder) Encode(ctx context.Context, text string, sizePx int) (image.Image, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if sizePx <= 0 {
		return nil, fmt.Errorf("qr: invalid size %d", sizePx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qrc, err := qrcode.NewWith(text, qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionHighest))
	if err != nil {
		return nil, fmt.Errorf("create qrcode: %w", err)
	}

	width := e.ModuleWidth
	if width == 0 {
		width = 8
	}
	var buf bytes.Buffer
	w := standard.NewWithWriter(nopCloser{Writer: &buf},
		standard.WithQRWidth(width),
		standard.WithBorderWidth(0),
		standard.WithBgColor(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		standard.WithFgColor(color.RGBA{A: 255}),
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
	)
	if err := qrc.Save(w); err != nil {
		return nil, fmt.Errorf("render qrcode: %w", err)
	}

	src, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode qrcode: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, sizePx, sizePx))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

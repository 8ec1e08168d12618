package layout

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	regularOnce sync.Once
	regularFont *opentype.Font
	regularErr  error
)

// Regular 内嵌的 Go Regular 字体，覆盖拉丁和西里尔字符
func Regular() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regularFont, regularErr = opentype.Parse(goregular.TTF)
		if regularErr != nil {
			regularErr = fmt.Errorf("parse go regular font: %w", regularErr)
		}
	})
	return regularFont, regularErr
}

// Metrics 单行的上下高度（像素）
type Metrics struct {
	Ascent  float64
	Descent float64
}

// LineHeight 单行高度
func (m Metrics) LineHeight() float64 {
	return m.Ascent + m.Descent
}

// FallbackMetrics 后端拿不到字体度量时的估计值
func FallbackMetrics(fontSize float64) Metrics {
	return Metrics{Ascent: fontSize * 0.7, Descent: fontSize * 0.3}
}

// Typesetter 按字号缓存 font.Face，负责测量和绘制文字。
// font.Face 不是并发安全的，一个 Typesetter 只能在一个 goroutine 里用。
type Typesetter struct {
	font  *opentype.Font
	faces map[float64]font.Face
}

// NewTypesetter f 为 nil 时使用内嵌字体
func NewTypesetter(f *opentype.Font) (*Typesetter, error) {
	if f == nil {
		var err error
		f, err = Regular()
		if err != nil {
			return nil, err
		}
	}
	return &Typesetter{font: f, faces: make(map[float64]font.Face)}, nil
}

// Face 返回指定像素字号的 face（72 DPI 下 pt == px）
func (t *Typesetter) Face(size float64) (font.Face, error) {
	if face, ok := t.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face %.1fpx: %w", size, err)
	}
	t.faces[size] = face
	return face, nil
}

// Close 释放缓存的 face
func (t *Typesetter) Close() error {
	for size, face := range t.faces {
		_ = face.Close()
		delete(t.faces, size)
	}
	return nil
}

// Width 文本渲染宽度；拿不到 face 时按字号粗估
func (t *Typesetter) Width(text string, size float64) float64 {
	face, err := t.Face(size)
	if err != nil {
		return float64(len([]rune(text))) * size * 0.5
	}
	return fixedToFloat(font.MeasureString(face, text))
}

// Metrics 上升取字形 M 的实际包围盒，下降取字体度量
func (t *Typesetter) Metrics(size float64) Metrics {
	face, err := t.Face(size)
	if err != nil {
		return FallbackMetrics(size)
	}
	bounds, _ := font.BoundString(face, "M")
	ascent := -fixedToFloat(bounds.Min.Y)
	descent := fixedToFloat(face.Metrics().Descent)
	if ascent <= 0 || descent <= 0 {
		return FallbackMetrics(size)
	}
	return Metrics{Ascent: ascent, Descent: descent}
}

// Draw 以 (x, baseline) 为起点画一行字
func (t *Typesetter) Draw(dst DrawTarget, text string, size, x, baseline float64, c color.Color) error {
	face, err := t.Face(size)
	if err != nil {
		return err
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(baseline)},
	}
	d.DrawString(text)
	return nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

package layout

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/chaos-io/brandcam/raster"
)

// DrawTarget 可绘制的目标图像
type DrawTarget = draw.Image

// RightMargin 右对齐文本框右边缘到画布右边的距离
const RightMargin = 70

// ShadowOffset 阴影相对正文的偏移
const ShadowOffset = 2

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// Style 文本框样式。零值不可用，从 DefaultStyle 开始改。
type Style struct {
	FontSize    float64 // 默认 40
	Align       Align   // 默认左对齐
	Fill        color.Color
	PadX        float64 // 默认 10
	PadY        float64 // 默认 12
	LineSpacing float64 // 默认 5
	Radius      float64 // 默认 15
	// CenterX 居中对齐时的中心横坐标，nil 表示画布中心
	CenterX *float64
}

// DefaultStyle 40px、左对齐、无底色
func DefaultStyle() Style {
	return Style{
		FontSize:    40,
		Align:       AlignLeft,
		PadX:        10,
		PadY:        12,
		LineSpacing: 5,
		Radius:      15,
	}
}

// Around 以 x 为中心水平居中
func (s Style) Around(x float64) Style {
	s.Align = AlignCenter
	s.CenterX = &x
	return s
}

func (s Style) Validate() error {
	var errs []error
	if s.FontSize <= 0 || math.IsNaN(s.FontSize) {
		errs = append(errs, errors.New("font size must be positive"))
	}
	if s.PadX < 0 || s.PadY < 0 {
		errs = append(errs, errors.New("padding must not be negative"))
	}
	if s.LineSpacing < 0 {
		errs = append(errs, errors.New("line spacing must not be negative"))
	}
	if s.Radius < 0 {
		errs = append(errs, errors.New("radius must not be negative"))
	}
	if s.Align < AlignLeft || s.Align > AlignRight {
		errs = append(errs, errors.New("unknown alignment"))
	}
	return errors.Join(errs...)
}

// Measurer 测量文本宽度
type Measurer interface {
	Width(text string, size float64) float64
}

// Wrap 贪心换行：单词不断累加，拼接宽度超过 maxWidth 就另起一行。
// 空文本返回 nil，调用方应直接跳过绘制，不画空框。
func Wrap(m Measurer, text string, maxWidth, fontSize float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	var current []string
	for _, word := range words {
		candidate := strings.Join(append(current, word), " ")
		if m.Width(candidate, fontSize) <= maxWidth {
			current = append(current, word)
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
		}
		current = []string{word}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}

// Wrap 见包级 Wrap
func (t *Typesetter) Wrap(text string, maxWidth, fontSize float64) []string {
	return Wrap(t, text, maxWidth, fontSize)
}

// Size 文本块尺寸（不含内边距）
type Size struct {
	Width  float64
	Height float64
}

// SizeBlock 宽取最长行，高 = 行高*行数 + 行距*(行数-1)
func SizeBlock(m Measurer, metrics Metrics, lines []string, fontSize, lineSpacing float64) Size {
	if len(lines) == 0 {
		return Size{}
	}
	var width float64
	for _, line := range lines {
		width = math.Max(width, m.Width(line, fontSize))
	}
	n := float64(len(lines))
	return Size{
		Width:  width,
		Height: metrics.LineHeight()*n + lineSpacing*(n-1),
	}
}

// SizeBlock 使用自身字体度量
func (t *Typesetter) SizeBlock(lines []string, fontSize, lineSpacing float64) Size {
	return SizeBlock(t, t.Metrics(fontSize), lines, fontSize, lineSpacing)
}

// PlaceBlock 计算文本块左边缘：
// 左对齐取 anchorX；右对齐使右边缘距画布右侧 RightMargin；
// 居中对齐以 s.CenterX（未设置时为画布中心）为中心。
func PlaceBlock(width, anchorX float64, s Style, canvasWidth float64) float64 {
	switch s.Align {
	case AlignRight:
		return canvasWidth - width - RightMargin
	case AlignCenter:
		if s.CenterX != nil {
			return *s.CenterX - width/2
		}
		return (canvasWidth - width) / 2
	default:
		return anchorX
	}
}

// Box 已绘制文本框的位置
type Box struct {
	Rect   image.Rectangle
	Height float64
}

// MeasureBox 只算高度不绘制，用于自下而上堆叠
func (t *Typesetter) MeasureBox(lines []string, s Style) float64 {
	if len(lines) == 0 {
		return 0
	}
	return t.SizeBlock(lines, s.FontSize, s.LineSpacing).Height + 2*s.PadY
}

// DrawBox 先画圆角底框，再逐行画阴影和正文，文字在框内垂直居中。
// lines 为空时什么都不画，返回零值。
func (t *Typesetter) DrawBox(dst DrawTarget, lines []string, x, y float64, s Style, text color.Color, shadow color.Color) (Box, error) {
	if len(lines) == 0 {
		return Box{}, nil
	}
	if err := s.Validate(); err != nil {
		return Box{}, err
	}

	metrics := t.Metrics(s.FontSize)
	block := t.SizeBlock(lines, s.FontSize, s.LineSpacing)
	maxWidth := math.Max(block.Width, 1)
	startX := PlaceBlock(maxWidth, x, s, float64(dst.Bounds().Dx()))

	left := startX - s.PadX
	top := y
	width := maxWidth + 2*s.PadX
	height := block.Height + 2*s.PadY

	if s.Fill != nil {
		raster.RoundedRect(dst, left, top, width, height, s.Radius, s.Fill)
	}

	baseline := y + s.PadY + metrics.Ascent
	for _, line := range lines {
		lineX := startX
		lw := t.Width(line, s.FontSize)
		switch s.Align {
		case AlignRight:
			lineX = startX + (maxWidth - lw)
		case AlignCenter:
			lineX = startX + (maxWidth-lw)/2
		}
		if shadow != nil {
			if err := t.Draw(dst, line, s.FontSize, lineX+ShadowOffset, baseline+ShadowOffset, shadow); err != nil {
				return Box{}, err
			}
		}
		if err := t.Draw(dst, line, s.FontSize, lineX, baseline, text); err != nil {
			return Box{}, err
		}
		baseline += metrics.LineHeight() + s.LineSpacing
	}

	rect := image.Rect(
		int(math.Floor(left)), int(math.Floor(top)),
		int(math.Ceil(left+width)), int(math.Ceil(top+height)),
	)
	return Box{Rect: rect, Height: height}, nil
}

package palette

import (
	"fmt"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// AAContrast WCAG AA 普通文本的最低对比度
const AAContrast = 4.5

var (
	White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Black = color.RGBA{A: 0xff}
)

var hexPattern = regexp.MustCompile(`^#?(?:[0-9a-fA-F]{3}){1,2}$`)

// HexError 非法的十六进制颜色
type HexError struct {
	Value string
}

func (e *HexError) Error() string {
	return fmt.Sprintf("invalid hex color %q", e.Value)
}

// IsHex 判断是否为 3 位或 6 位十六进制颜色（# 可选）
func IsHex(s string) bool {
	return hexPattern.MatchString(strings.TrimSpace(s))
}

// ParseHex 解析 #RGB / #RRGGBB，返回不透明颜色
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if !hexPattern.MatchString(s) {
		return color.RGBA{}, &HexError{Value: s}
	}
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, &HexError{Value: s}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// MustHex 解析失败时 panic，只用于常量颜色
func MustHex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex 格式化为 #RRGGBB
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// WithAlpha 返回带透明度的非预乘颜色
func WithAlpha(c color.RGBA, a uint8) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}
}

func linear(v uint8) float64 {
	c := float64(v) / 255
	if c <= 0.03928 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// RelativeLuminance sRGB 转线性后按 BT.709 权重求和
func RelativeLuminance(r, g, b uint8) float64 {
	return 0.2126*linear(r) + 0.7152*linear(g) + 0.0722*linear(b)
}

func luminance(c color.RGBA) float64 {
	return RelativeLuminance(c.R, c.G, c.B)
}

// ContrastRatio (max+0.05)/(min+0.05)，与参数顺序无关
func ContrastRatio(bg, fg color.RGBA) float64 {
	lb, lf := luminance(bg), luminance(fg)
	return (math.Max(lb, lf) + 0.05) / (math.Min(lb, lf) + 0.05)
}

// ChooseTextColor 白字达到 AA 则用白色，否则黑字达到 AA 用黑色，都不达标时回退白色。
// 回退是有意的折中，不要改成返回错误。
func ChooseTextColor(bg color.RGBA) color.RGBA {
	if ContrastRatio(bg, White) >= AAContrast {
		return White
	}
	if ContrastRatio(bg, Black) >= AAContrast {
		return Black
	}
	return White
}

// ChooseTextColorHex 同 ChooseTextColor，输入为十六进制字符串
func ChooseTextColorHex(bg string) (color.RGBA, error) {
	c, err := ParseHex(bg)
	if err != nil {
		return color.RGBA{}, err
	}
	return ChooseTextColor(c), nil
}

// IsLight 文字只会是黑或白，看红色通道即可
func IsLight(c color.RGBA) bool {
	return c.R > 128
}

// ShadowColor 亮字配半透明黑影，暗字配半透明白影
func ShadowColor(text color.RGBA) color.NRGBA {
	if IsLight(text) {
		return color.NRGBA{A: 128}
	}
	return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 128}
}

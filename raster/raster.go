package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Canvas 创建 w*h 的 RGBA 画布
func Canvas(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// Fill 用纯色覆盖整张图
func Fill(dst draw.Image, c color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// RoundedRect 画抗锯齿的填充圆角矩形，颜色带透明度时叠加（Over）到 dst 上
func RoundedRect(dst draw.Image, x, y, w, h, radius float64, fill color.Color) {
	if w <= 0 || h <= 0 {
		return
	}
	radius = math.Max(0, math.Min(radius, math.Min(w, h)/2))

	// 光栅器只处理整数原点，小数部分折到路径里
	ox, oy := math.Floor(x), math.Floor(y)
	fx, fy := float32(x-ox), float32(y-oy)
	rw := int(math.Ceil(x+w-ox)) + 1
	rh := int(math.Ceil(y+h-oy)) + 1

	r := float32(radius)
	x0, y0 := fx, fy
	x1, y1 := fx+float32(w), fy+float32(h)

	z := vector.NewRasterizer(rw, rh)
	z.MoveTo(x0+r, y0)
	z.LineTo(x1-r, y0)
	z.QuadTo(x1, y0, x1, y0+r)
	z.LineTo(x1, y1-r)
	z.QuadTo(x1, y1, x1-r, y1)
	z.LineTo(x0+r, y1)
	z.QuadTo(x0, y1, x0, y1-r)
	z.LineTo(x0, y0+r)
	z.QuadTo(x0, y0, x0+r, y0)
	z.ClosePath()

	target := image.Rect(int(ox), int(oy), int(ox)+rw, int(oy)+rh)
	clipped := target.Intersect(dst.Bounds())
	if clipped.Empty() {
		return
	}
	if clipped != target {
		// 超出画布的部分先画到临时遮罩再裁剪
		mask := image.NewAlpha(image.Rect(0, 0, rw, rh))
		z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
		mp := clipped.Min.Sub(target.Min)
		draw.DrawMask(dst, clipped, image.NewUniform(fill), image.Point{}, mask, mp, draw.Over)
		return
	}
	z.Draw(dst, target, image.NewUniform(fill), image.Point{})
}

// Lerp 两色按 t∈[0,1] 线性插值（四舍五入）
func Lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(p, q uint8) uint8 {
		return uint8(math.Round(float64(p)*(1-t) + float64(q)*t))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

// VerticalGradient 逐行在 top 与 bottom 之间插值，以统一的低透明度覆盖整张图
func VerticalGradient(dst draw.Image, top, bottom color.RGBA, alpha float64) {
	b := dst.Bounds()
	h := b.Dy()
	if h == 0 {
		return
	}
	a := uint8(math.Round(math.Max(0, math.Min(1, alpha)) * 255))
	for row := 0; row < h; row++ {
		c := Lerp(top, bottom, float64(row)/float64(h))
		line := image.Rect(b.Min.X, b.Min.Y+row, b.Max.X, b.Min.Y+row+1)
		draw.Draw(dst, line, image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: a}), image.Point{}, draw.Over)
	}
}

// Blit 把 src 缩放进目标矩形 (x, y, w, h)
func Blit(dst draw.Image, src image.Image, x, y, w, h int) {
	if src == nil || w <= 0 || h <= 0 {
		return
	}
	r := image.Rect(x, y, x+w, y+h)
	if src.Bounds().Size() == r.Size() {
		draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
		return
	}
	xdraw.CatmullRom.Scale(dst, r, src, src.Bounds(), xdraw.Over, nil)
}

// Cover 把 src 拉伸铺满 dst，覆盖原有像素
func Cover(dst draw.Image, src image.Image) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}

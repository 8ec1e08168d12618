package matte

import (
	"errors"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// DefaultSoftness 边缘柔化的高斯 sigma（像素）
const DefaultSoftness = 8.0

// ErrEmpty 遮罩里没有前景
var ErrEmpty = errors.New("matte: no foreground")

// FromImage 把分割结果转为 alpha 遮罩：
// 图片自带有效 alpha 时直接取 alpha，否则按亮度取值（白色为前景）
func FromImage(img image.Image) *image.Alpha {
	if a, ok := img.(*image.Alpha); ok {
		return a
	}
	b := img.Bounds()
	if hasUsefulAlpha(img) {
		out := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	gray := toGray(img)
	return &image.Alpha{Pix: gray.Pix, Stride: gray.Stride, Rect: gray.Rect}
}

// hasUsefulAlpha 只要存在不完全不透明的像素，就认为 alpha 通道带了抠图信息
func hasUsefulAlpha(img image.Image) bool {
	switch src := img.(type) {
	case *image.NRGBA:
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] != 255 {
				return true
			}
		}
		return false
	case *image.RGBA:
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] != 255 {
				return true
			}
		}
		return false
	case *image.Gray, *image.YCbCr, *image.Gray16:
		return false
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// toGray 转灰度，原点移到 (0,0)
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(x+b.Min.X, y+b.Min.Y).RGBA()
			gray.Pix[y*gray.Stride+x] = uint8((299*r + 587*g + 114*bl) / 1000 >> 8)
		}
	}
	return gray
}

// grayView 与 alpha 共用像素，便于交给只认 Gray 的库
func grayView(a *image.Alpha) *image.Gray {
	return &image.Gray{Pix: a.Pix, Stride: a.Stride, Rect: a.Rect}
}

func alphaView(g *image.Gray) *image.Alpha {
	return &image.Alpha{Pix: g.Pix, Stride: g.Stride, Rect: g.Rect}
}

// Fit 把遮罩缩放到帧尺寸，尺寸一致时原样返回
func Fit(mask *image.Alpha, w, h int) *image.Alpha {
	if mask.Bounds().Dx() == w && mask.Bounds().Dy() == h {
		return mask
	}
	resized := resize.Resize(uint(w), uint(h), grayView(mask), resize.Bilinear)
	if g, ok := resized.(*image.Gray); ok {
		return alphaView(g)
	}
	return FromImage(resized)
}

// Soften 高斯模糊柔化边缘，sigma <= 0 时不处理
func Soften(mask *image.Alpha, sigma float64) *image.Alpha {
	if sigma <= 0 {
		return mask
	}
	blurred := imaging.Blur(grayView(mask), sigma)
	out := image.NewAlpha(image.Rect(0, 0, blurred.Rect.Dx(), blurred.Rect.Dy()))
	for i := range out.Pix {
		out.Pix[i] = blurred.Pix[i*4]
	}
	return out
}

// Prepare 缩放到帧尺寸后柔化，每个新遮罩只做一次
func Prepare(mask *image.Alpha, w, h int, sigma float64) *image.Alpha {
	return Soften(Fit(mask, w, h), sigma)
}

// BBox 返回 alpha > threshold*255 的像素范围，没有前景时返回 ErrEmpty
func BBox(mask *image.Alpha, threshold float64) (image.Rectangle, error) {
	b := mask.Bounds()
	th := uint8(threshold * 255)

	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	found := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * mask.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.Pix[row+x-b.Min.X] > th {
				found = true
				minX, minY = min(minX, x), min(minY, y)
				maxX, maxY = max(maxX, x), max(maxY, y)
			}
		}
	}

	if !found {
		return image.Rectangle{}, ErrEmpty
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), nil
}

// Uniform 全部像素相同的遮罩
func Uniform(w, h int, v uint8) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	if v != 0 {
		for i := range m.Pix {
			m.Pix[i] = v
		}
	}
	return m
}

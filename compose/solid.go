package compose

import (
	"image"

	"github.com/chaos-io/brandcam/layout"
	"github.com/chaos-io/brandcam/palette"
	"github.com/chaos-io/brandcam/raster"
)

const (
	SwatchWidth    = 200
	SwatchHeight   = 150
	swatchFontSize = 24
)

// SolidBase 纯色底图，用于"颜色背景"
func SolidBase(hex string, w, h int) (*image.RGBA, error) {
	c, err := palette.ParseHex(hex)
	if err != nil {
		return nil, err
	}
	img := raster.Canvas(w, h)
	raster.Fill(img, c)
	return img, nil
}

// Swatch 颜色预览块，中间写上规范化后的色值
func Swatch(hex string) (*image.RGBA, error) {
	c, err := palette.ParseHex(hex)
	if err != nil {
		return nil, err
	}
	img := raster.Canvas(SwatchWidth, SwatchHeight)
	raster.Fill(img, c)

	ts, err := layout.NewTypesetter(nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ts.Close()
	}()

	label := palette.Hex(c)
	text := palette.ChooseTextColor(c)
	m := ts.Metrics(swatchFontSize)
	x := (SwatchWidth - ts.Width(label, swatchFontSize)) / 2
	baseline := (SwatchHeight-m.LineHeight())/2 + m.Ascent
	if err := ts.Draw(img, label, swatchFontSize, x, baseline, text); err != nil {
		return nil, err
	}
	return img, nil
}

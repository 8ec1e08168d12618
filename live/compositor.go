package live

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chaos-io/brandcam/layout"
	"github.com/chaos-io/brandcam/matte"
	"github.com/chaos-io/brandcam/metrics"
	"github.com/chaos-io/brandcam/palette"
	"github.com/chaos-io/brandcam/raster"
	"github.com/chaos-io/brandcam/segment"
)

// Mode 合成模式
type Mode int32

const (
	PassThrough Mode = iota
	Segmented
)

func (m Mode) String() string {
	if m == Segmented {
		return "segmented"
	}
	return "pass-through"
}

// ParseMode 不认识的值返回错误
func ParseMode(s string) (Mode, error) {
	switch s {
	case "segmented":
		return Segmented, nil
	case "pass-through", "passthrough":
		return PassThrough, nil
	}
	return PassThrough, errors.New("unknown mode " + s)
}

// NoBackgroundWarning 分割模式下没有背景时显示的提示
const NoBackgroundWarning = "Background unavailable: showing camera"

// Layer 已经加载完成的背景层，交给合成器后不再修改
type Layer struct {
	ID    string
	Image image.Image
}

// Compositor 每帧把摄像头画面、遮罩和背景合成为一张图。
// SetBackground/SetMode/SetWarning 可在任意 goroutine 调用；
// Render 只能在帧循环的 goroutine 里调用。
type Compositor struct {
	layer   atomic.Pointer[Layer]
	mode    atomic.Int32
	warning atomic.Pointer[string]
	version atomic.Uint64

	masks    *segment.Slot[*image.Alpha]
	softness float64
	logger   *slog.Logger
	latest   *metrics.Latest

	// 以下只在帧循环里访问
	rawMask   *image.Alpha
	mask      *image.Alpha
	empty     bool
	scaled    *image.RGBA
	scaledFor *Layer
	frame     *metrics.Frame
	ts        *layout.Typesetter
}

type Option func(*Compositor)

// WithSoftness 遮罩边缘的高斯 sigma，0 关闭柔化
func WithSoftness(sigma float64) Option {
	return func(c *Compositor) { c.softness = sigma }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNoise 替换负载估算的随机抖动，测试用
func WithNoise(noise metrics.NoiseFunc) Option {
	return func(c *Compositor) { c.frame = metrics.NewFrame(noise) }
}

func NewCompositor(masks *segment.Slot[*image.Alpha], opts ...Option) *Compositor {
	if masks == nil {
		masks = segment.NewSlot[*image.Alpha]()
	}
	c := &Compositor{
		masks:    masks,
		softness: matte.DefaultSoftness,
		logger:   slog.Default(),
		latest:   &metrics.Latest{},
		frame:    metrics.NewFrame(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Masks 遮罩交接槽，推理端往里 Publish
func (c *Compositor) Masks() *segment.Slot[*image.Alpha] {
	return c.masks
}

// SetBackground 原子替换背景层，下一帧生效；nil 清除背景
func (c *Compositor) SetBackground(l *Layer) {
	c.layer.Store(l)
	c.version.Add(1)
	if l != nil {
		c.logger.Info("background swapped", "id", l.ID, "size", l.Image.Bounds().Size())
	}
}

func (c *Compositor) Background() *Layer {
	return c.layer.Load()
}

// SetMode 两个方向都可以切换
func (c *Compositor) SetMode(m Mode) {
	if Mode(c.mode.Swap(int32(m))) != m {
		c.version.Add(1)
		c.logger.Info("compositor mode changed", "mode", m)
	}
}

func (c *Compositor) Mode() Mode {
	return Mode(c.mode.Load())
}

// SetWarning 在画面上显示提示，空串清除
func (c *Compositor) SetWarning(msg string) {
	if msg == "" {
		c.warning.Store(nil)
	} else {
		c.warning.Store(&msg)
	}
	c.version.Add(1)
}

func (c *Compositor) Warning() string {
	if p := c.warning.Load(); p != nil {
		return *p
	}
	return ""
}

// Version 背景、模式或提示变化时递增
func (c *Compositor) Version() uint64 {
	return c.version.Load()
}

// Metrics 最近一帧的平滑指标，可跨 goroutine 读取
func (c *Compositor) Metrics() metrics.Snapshot {
	return c.latest.Load()
}

// Render 以摄像头原始分辨率输出一帧。
// 没有新遮罩时沿用上一张，不等待推理。
func (c *Compositor) Render(frame image.Image, now time.Time) *image.RGBA {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	out := raster.Canvas(w, h)

	c.refreshMask(w, h)
	bg := c.background(w, h)
	warning := c.Warning()

	switch {
	case c.Mode() == PassThrough:
		if bg != nil {
			draw.Draw(out, out.Bounds(), bg, image.Point{}, draw.Src)
		}
		draw.Draw(out, out.Bounds(), frame, b.Min, draw.Over)
	case bg == nil:
		draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
		if warning == "" {
			warning = NoBackgroundWarning
		}
	default:
		draw.Draw(out, out.Bounds(), bg, image.Point{}, draw.Src)
		switch {
		case c.mask == nil:
			draw.Draw(out, out.Bounds(), frame, b.Min, draw.Over)
		case c.empty:
			// 没有前景，只剩背景
		default:
			draw.DrawMask(out, out.Bounds(), frame, b.Min, c.mask, c.mask.Bounds().Min, draw.Over)
		}
	}

	if warning != "" {
		c.banner(out, warning)
	}

	c.latest.Store(c.frame.Tick(now))
	return out
}

func (c *Compositor) refreshMask(w, h int) {
	if m, ok := c.masks.TryTake(); ok && m != nil {
		c.rawMask = m
		c.mask = nil
	}
	if c.rawMask == nil {
		return
	}
	if c.mask != nil && c.mask.Bounds().Dx() == w && c.mask.Bounds().Dy() == h {
		return
	}
	c.mask = matte.Prepare(c.rawMask, w, h, c.softness)
	_, err := matte.BBox(c.mask, 0)
	c.empty = errors.Is(err, matte.ErrEmpty)
}

// background 按帧尺寸缓存缩放后的背景
func (c *Compositor) background(w, h int) *image.RGBA {
	l := c.layer.Load()
	if l == nil || l.Image == nil {
		return nil
	}
	if c.scaledFor == l && c.scaled != nil && c.scaled.Bounds().Dx() == w && c.scaled.Bounds().Dy() == h {
		return c.scaled
	}
	scaled := raster.Canvas(w, h)
	if rgba, ok := l.Image.(*image.RGBA); ok && rgba.Bounds() == scaled.Bounds() {
		draw.Draw(scaled, scaled.Bounds(), rgba, image.Point{}, draw.Src)
	} else {
		raster.Cover(scaled, l.Image)
	}
	c.scaled, c.scaledFor = scaled, l
	return scaled
}

var bannerFill = color.NRGBA{R: 0xC6, G: 0x28, B: 0x28, A: 0xD0}

// banner 顶部居中的红色提示条
func (c *Compositor) banner(dst *image.RGBA, msg string) {
	if c.ts == nil {
		ts, err := layout.NewTypesetter(nil)
		if err != nil {
			c.logger.Warn("warning banner unavailable", "err", err)
			return
		}
		c.ts = ts
	}
	s := layout.DefaultStyle()
	s.Align = layout.AlignCenter
	s.FontSize = max(14, float64(dst.Bounds().Dy())/36)
	s.Fill = bannerFill
	text := palette.ChooseTextColor(color.RGBA{R: bannerFill.R, G: bannerFill.G, B: bannerFill.B, A: 0xff})
	if _, err := c.ts.DrawBox(dst, []string{msg}, 0, s.FontSize/2, s, text, palette.ShadowColor(text)); err != nil {
		c.logger.Warn("warning banner failed", "err", err)
	}
}

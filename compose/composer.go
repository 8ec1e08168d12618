package compose

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/brandcam/asset"
	"github.com/chaos-io/brandcam/layout"
	"github.com/chaos-io/brandcam/palette"
	"github.com/chaos-io/brandcam/profile"
	"github.com/chaos-io/brandcam/qr"
	"github.com/chaos-io/brandcam/raster"
)

const (
	Width  = 1920
	Height = 1080

	// GradientAlpha 品牌色渐变的透明度
	GradientAlpha = 0.12
)

// Composer 根据资料和底图生成品牌背景。可并发调用，每次 Compose 自带排版器。
type Composer struct {
	assets asset.Source
	qr     qr.Generator
	logger *slog.Logger
}

type Option func(*Composer)

func WithAssets(src asset.Source) Option {
	return func(c *Composer) { c.assets = src }
}

func WithQR(g qr.Generator) Option {
	return func(c *Composer) { c.qr = g }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewComposer(opts ...Option) *Composer {
	c := &Composer{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.assets == nil {
		c.assets = asset.NewLoader(asset.WithLogger(c.logger))
	}
	if c.qr == nil {
		c.qr = qr.NewEncoder()
	}
	return c
}

// ComposeFrom 先加载底图再合成，底图失败返回 *CompositionError
func (c *Composer) ComposeFrom(ctx context.Context, p profile.Profile, baseURI string) (*Background, error) {
	base, err := c.assets.Load(ctx, baseURI)
	if err != nil {
		return nil, &CompositionError{URI: baseURI, Err: err}
	}
	return c.Compose(ctx, p, base)
}

// Compose 按披露等级绘制面板。
// 顺序：底图、渐变、logo、姓名职位、组织信息、联系方式、标语。
// logo 和二维码失败只记警告，不影响其余内容。
func (c *Composer) Compose(ctx context.Context, p profile.Profile, base image.Image) (*Background, error) {
	if base == nil || base.Bounds().Empty() {
		return nil, &CompositionError{Err: errors.New("base image is empty")}
	}
	p, err := profile.New(p)
	if err != nil {
		return nil, &CompositionError{Err: err}
	}

	ts, err := layout.NewTypesetter(nil)
	if err != nil {
		return nil, &CompositionError{Err: err}
	}
	defer func() {
		_ = ts.Close()
	}()

	canvas := raster.Canvas(Width, Height)
	raster.Cover(canvas, base)
	raster.VerticalGradient(canvas, p.Primary(), p.Secondary(), GradientAlpha)

	bg := &Background{
		ID:    ksuid.New().String(),
		Image: canvas,
		Level: p.Level,
	}
	d := &drawer{
		Composer: c,
		ts:       ts,
		dst:      canvas,
		bg:       bg,
		text:     palette.ChooseTextColor(p.Primary()),
		primary:  palette.WithAlpha(p.Primary(), 0x77),
		second:   palette.WithAlpha(p.Secondary(), 0x64),
	}
	d.shadow = palette.ShadowColor(d.text)

	d.logo(ctx, p.Branding.LogoURI)
	d.identity(p)
	if p.Level.AtLeast(profile.Medium) {
		d.org(p)
	}
	if p.Level.AtLeast(profile.High) {
		d.contacts(ctx, p)
	}
	d.slogan(p.Branding.Slogan)

	c.logger.Debug("background composed", "id", bg.ID, "level", bg.Level,
		"panels", len(bg.Panels), "tiles", len(bg.Tiles), "warnings", len(bg.Warnings))
	return bg, nil
}

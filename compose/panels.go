package compose

import (
	"context"
	"image"
	"image/color"

	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/brandcam/layout"
	"github.com/chaos-io/brandcam/profile"
	"github.com/chaos-io/brandcam/raster"
)

// 固定版式，按 1920x1080 设计
const (
	FontSize    = 40
	WrapWidth   = 500
	LeftMargin  = 50
	LogoSize    = 125
	StackGap    = 10
	BottomInset = 200
	OrgTop      = 120

	QRSize       = 128
	QRGap        = 20
	QRPad        = 10
	QRRightInset = 100
	QRBottom     = 220
	CaptionRise  = 50
	LabelDrop    = 30
	LabelSize    = 25
	LabelPadY    = 8

	SloganSize = 30
	SloganTop  = 50

	CaptionText = "Contacts"
)

type drawer struct {
	*Composer
	ts      *layout.Typesetter
	dst     *image.RGBA
	bg      *Background
	text    color.RGBA
	shadow  color.NRGBA
	primary color.NRGBA
	second  color.NRGBA
}

func (d *drawer) style(fill color.Color) layout.Style {
	s := layout.DefaultStyle()
	s.Fill = fill
	return s
}

func (d *drawer) box(lines []string, x, y float64, s layout.Style) (layout.Box, bool) {
	box, err := d.ts.DrawBox(d.dst, lines, x, y, s, d.text, d.shadow)
	if err != nil {
		d.logger.Warn("text box skipped", "lines", lines, "err", err)
		d.bg.warnf("text %q: %v", lines, err)
		return layout.Box{}, false
	}
	return box, len(lines) > 0
}

func (d *drawer) logo(ctx context.Context, uri string) {
	if uri == "" {
		return
	}
	img, err := d.assets.Load(ctx, uri)
	if err != nil {
		d.logger.Warn("logo skipped", "uri", uri, "err", err)
		d.bg.warnf("logo: %v", err)
		return
	}
	raster.Blit(d.dst, img, LeftMargin, LeftMargin, LogoSize, LogoSize)
	d.bg.Panels = append(d.bg.Panels, Panel{
		Kind: PanelLogo,
		Rect: image.Rect(LeftMargin, LeftMargin, LeftMargin+LogoSize, LeftMargin+LogoSize),
	})
}

// identity 姓名贴在底线上，职位叠在它上面，整体向上生长
func (d *drawer) identity(p profile.Profile) {
	nameLines := d.ts.Wrap(p.FullName, WrapWidth, FontSize)
	positionLines := d.ts.Wrap(p.Position, WrapWidth, FontSize)
	if len(nameLines) == 0 && len(positionLines) == 0 {
		return
	}

	var rect image.Rectangle
	bottom := float64(Height - BottomInset)
	for _, block := range []struct {
		lines []string
		fill  color.Color
	}{
		{lines: nameLines, fill: d.primary},
		{lines: positionLines, fill: d.second},
	} {
		if len(block.lines) == 0 {
			continue
		}
		s := d.style(block.fill)
		top := bottom - d.ts.MeasureBox(block.lines, s)
		if box, ok := d.box(block.lines, LeftMargin, top, s); ok {
			rect = rect.Union(box.Rect)
		}
		bottom = top - StackGap
	}
	if rect.Empty() {
		return
	}

	lines := append(append([]string{}, nameLines...), positionLines...)
	d.bg.Panels = append(d.bg.Panels, Panel{Kind: PanelIdentity, Lines: lines, Rect: rect})
}

func (d *drawer) org(p profile.Profile) {
	lines := p.OrgLines()
	if len(lines) == 0 {
		return
	}
	s := d.style(d.second)
	s.Align = layout.AlignRight
	box, ok := d.box(lines, 0, OrgTop, s)
	if !ok {
		return
	}
	d.bg.Panels = append(d.bg.Panels, Panel{Kind: PanelOrg, Lines: lines, Rect: box.Rect})
}

type contactMethod struct {
	label string
	link  string
	fill  color.NRGBA
}

func (d *drawer) contactMethods(p profile.Profile) []contactMethod {
	var methods []contactMethod
	if link := p.MailtoURL(); link != "" {
		methods = append(methods, contactMethod{label: "Email", link: link, fill: d.primary})
	}
	if link := p.TelegramURL(); link != "" {
		methods = append(methods, contactMethod{label: "Telegram", link: link, fill: d.second})
	}
	return methods
}

// contacts 并发生成所有二维码，再按顺序绘制；单个失败只跳过该块
func (d *drawer) contacts(ctx context.Context, p profile.Profile) {
	methods := d.contactMethods(p)
	if len(methods) == 0 {
		return
	}

	codes := make([]image.Image, len(methods))
	errs := make([]error, len(methods))
	var g errgroup.Group
	for i, m := range methods {
		g.Go(func() error {
			codes[i], errs[i] = d.qr.Encode(ctx, m.link, QRSize)
			return nil
		})
	}
	_ = g.Wait()

	var ready []int
	for i, m := range methods {
		if errs[i] != nil {
			d.logger.Warn("qr tile skipped", "label", m.label, "err", errs[i])
			d.bg.warnf("qr %s: %v", m.label, errs[i])
			continue
		}
		ready = append(ready, i)
	}
	if len(ready) == 0 {
		return
	}

	tile := QRSize + 2*QRPad
	stripWidth := 2*QRSize + QRGap
	startX := Width - stripWidth - QRRightInset
	top := Height - QRBottom

	caption := d.style(d.primary).Around(float64(startX) + float64(stripWidth)/2)
	rect, _ := d.box([]string{CaptionText}, 0, float64(top-CaptionRise), caption)

	var labels []string
	for slot, i := range ready {
		m := methods[i]
		x := startX + slot*(QRSize+QRGap)
		raster.RoundedRect(d.dst, float64(x), float64(top), float64(tile), float64(tile), layout.DefaultStyle().Radius, m.fill)
		raster.Blit(d.dst, codes[i], x+QRPad, top+QRPad, QRSize, QRSize)

		s := d.style(m.fill).Around(float64(x) + float64(tile)/2)
		s.FontSize = LabelSize
		s.PadY = LabelPadY
		label, _ := d.box([]string{m.label}, 0, float64(top+QRSize+LabelDrop), s)

		tileRect := image.Rect(x, top, x+tile, top+tile)
		d.bg.Tiles = append(d.bg.Tiles, Tile{Label: m.label, Link: m.link, Rect: tileRect})
		rect.Rect = rect.Rect.Union(tileRect).Union(label.Rect)
		labels = append(labels, m.label)
	}

	d.bg.Panels = append(d.bg.Panels, Panel{Kind: PanelContacts, Lines: labels, Rect: rect.Rect})
}

func (d *drawer) slogan(text string) {
	lines := d.ts.Wrap(text, WrapWidth, SloganSize)
	if len(lines) == 0 {
		return
	}
	s := d.style(d.second)
	s.Align = layout.AlignCenter
	s.FontSize = SloganSize
	box, ok := d.box(lines, 0, SloganTop, s)
	if !ok {
		return
	}
	d.bg.Panels = append(d.bg.Panels, Panel{Kind: PanelSlogan, Lines: lines, Rect: box.Rect})
}

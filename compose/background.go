package compose

import (
	"fmt"
	"image"

	"github.com/chaos-io/brandcam/profile"
)

// PanelKind 背景上可能出现的面板
type PanelKind string

const (
	PanelLogo     PanelKind = "logo"
	PanelIdentity PanelKind = "identity"
	PanelOrg      PanelKind = "org"
	PanelContacts PanelKind = "contacts"
	PanelSlogan   PanelKind = "slogan"
)

// Panel 已绘制的面板及其文字行
type Panel struct {
	Kind  PanelKind       `json:"kind"`
	Lines []string        `json:"lines,omitempty"`
	Rect  image.Rectangle `json:"rect"`
}

// Tile 联系方式二维码
type Tile struct {
	Label string          `json:"label"`
	Link  string          `json:"link"`
	Rect  image.Rectangle `json:"rect"`
}

// Background 合成结果。Compose 返回后不再修改，换背景时整体替换。
type Background struct {
	ID       string        `json:"id"`
	Image    *image.RGBA   `json:"-"`
	Level    profile.Level `json:"level"`
	Panels   []Panel       `json:"panels"`
	Tiles    []Tile        `json:"tiles"`
	Warnings []string      `json:"warnings"`
}

// Panel 按类型查找面板
func (b *Background) Panel(kind PanelKind) (Panel, bool) {
	for _, p := range b.Panels {
		if p.Kind == kind {
			return p, true
		}
	}
	return Panel{}, false
}

// Has 是否绘制了某类面板
func (b *Background) Has(kind PanelKind) bool {
	_, ok := b.Panel(kind)
	return ok
}

// Kinds 已绘制面板的类型集合
func (b *Background) Kinds() map[PanelKind]bool {
	kinds := make(map[PanelKind]bool, len(b.Panels))
	for _, p := range b.Panels {
		kinds[p.Kind] = true
	}
	return kinds
}

func (b *Background) warnf(format string, args ...any) {
	b.Warnings = append(b.Warnings, fmt.Sprintf(format, args...))
}

// CompositionError 底图不可用，整个合成失败。调用方应退回原始底图或纯色。
type CompositionError struct {
	URI string
	Err error
}

func (e *CompositionError) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("compose background: %v", e.Err)
	}
	return fmt.Sprintf("compose background from %s: %v", e.URI, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

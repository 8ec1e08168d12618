package studio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/brandcam/asset"
	"github.com/chaos-io/brandcam/compose"
	"github.com/chaos-io/brandcam/live"
	"github.com/chaos-io/brandcam/profile"
	"github.com/chaos-io/brandcam/raster"
)

var (
	// ErrNoSelection 既没有底图也没有颜色
	ErrNoSelection = errors.New("studio: selection needs a base uri or a color")
	// ErrNoProfile 还没有设置员工资料
	ErrNoProfile = errors.New("studio: no profile set")
)

// Selection 用户选择的背景。Color 非空时优先于 BaseURI。
type Selection struct {
	BaseURI     string `json:"base_uri,omitempty"`
	Color       string `json:"color,omitempty"`
	ShowProfile bool   `json:"show_profile"`
}

// Outcome 背景应用的结果
type Outcome string

const (
	Composed    Outcome = "composed"     // 带资料的品牌背景
	PlainBase   Outcome = "plain"        // 未叠加资料，或叠加失败退回原始底图
	PassThrough Outcome = "pass-through" // 底图不可用，摄像头直通
)

// Result Apply 的结果，Warnings 包含各面板的失败原因
type Result struct {
	Outcome    Outcome             `json:"outcome"`
	LayerID    string              `json:"layer_id,omitempty"`
	Background *compose.Background `json:"-"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// Studio 把选择的背景合成好，再原子地交给合成器
type Studio struct {
	comp     *live.Compositor
	composer *compose.Composer
	assets   asset.Source
	logger   *slog.Logger

	mu      sync.RWMutex
	profile *profile.Profile

	// 同一时刻只应用一个背景，后到的覆盖先到的
	applyMu sync.Mutex
}

type Option func(*Studio)

func WithComposer(c *compose.Composer) Option {
	return func(s *Studio) { s.composer = c }
}

func WithAssets(src asset.Source) Option {
	return func(s *Studio) { s.assets = src }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(comp *live.Compositor, opts ...Option) *Studio {
	s := &Studio{
		comp:   comp,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assets == nil {
		s.assets = asset.NewLoader(asset.WithLogger(s.logger))
	}
	if s.composer == nil {
		s.composer = compose.NewComposer(compose.WithAssets(s.assets), compose.WithLogger(s.logger))
	}
	return s
}

// SetProfile 校验后整体替换当前资料
func (s *Studio) SetProfile(p profile.Profile) (profile.Profile, error) {
	p, err := profile.New(p)
	if err != nil {
		return profile.Profile{}, err
	}
	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
	return p, nil
}

func (s *Studio) Profile() (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return profile.Profile{}, ErrNoProfile
	}
	return *s.profile, nil
}

// Apply 生成并切换背景：
// 底图不可用时切回直通并在画面上提示；资料叠加失败时退回原始底图。
// 只有选择本身无效时返回 error，此时合成器状态不变。
func (s *Studio) Apply(ctx context.Context, sel Selection) (*Result, error) {
	sel.Color = strings.TrimSpace(sel.Color)
	sel.BaseURI = strings.TrimSpace(sel.BaseURI)
	if sel.Color == "" && sel.BaseURI == "" {
		return nil, ErrNoSelection
	}

	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	base, err := s.base(ctx, sel)
	if err != nil {
		var le *asset.LoadError
		if !errors.As(err, &le) {
			return nil, err
		}
		msg := fmt.Sprintf("Background unavailable (%s): showing camera", le.Kind)
		s.logger.Warn("background base unusable", "uri", sel.BaseURI, "err", err)
		// 旧背景一并清掉，之后切回 Segmented 也不会把它带回来
		s.comp.SetBackground(nil)
		s.comp.SetWarning(msg)
		s.comp.SetMode(live.PassThrough)
		return &Result{Outcome: PassThrough, Warnings: []string{msg}}, nil
	}

	res := &Result{Outcome: PlainBase}
	var layer *live.Layer
	if sel.ShowProfile {
		layer, err = s.composed(ctx, base, res)
		if err != nil {
			res.Warnings = append(res.Warnings, "profile overlay unavailable: "+err.Error())
			s.logger.Warn("compose failed, using plain base", "err", err)
		}
	}
	if layer == nil {
		layer = s.plain(base)
	}
	res.LayerID = layer.ID

	s.comp.SetBackground(layer)
	s.comp.SetWarning("")
	s.comp.SetMode(live.Segmented)
	s.logger.Info("background applied", "id", layer.ID, "outcome", res.Outcome, "warnings", len(res.Warnings))
	return res, nil
}

func (s *Studio) base(ctx context.Context, sel Selection) (image.Image, error) {
	if sel.Color != "" {
		img, err := compose.SolidBase(sel.Color, compose.Width, compose.Height)
		if err != nil {
			return nil, fmt.Errorf("color background: %w", err)
		}
		return img, nil
	}
	img, err := s.assets.Load(ctx, sel.BaseURI)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, &asset.LoadError{URI: sel.BaseURI, Kind: asset.KindDecode, Err: errors.New("empty image")}
	}
	return img, nil
}

func (s *Studio) composed(ctx context.Context, base image.Image, res *Result) (*live.Layer, error) {
	p, err := s.Profile()
	if err != nil {
		return nil, err
	}
	bg, err := s.composer.Compose(ctx, p, base)
	if err != nil {
		return nil, err
	}
	res.Outcome = Composed
	res.Background = bg
	res.Warnings = append(res.Warnings, bg.Warnings...)
	return &live.Layer{ID: bg.ID, Image: bg.Image}, nil
}

// plain 把底图铺满画布，不叠加任何资料
func (s *Studio) plain(base image.Image) *live.Layer {
	canvas := raster.Canvas(compose.Width, compose.Height)
	raster.Cover(canvas, base)
	return &live.Layer{ID: ksuid.New().String(), Image: canvas}
}

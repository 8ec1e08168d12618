package server

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/brandcam/live"
	"github.com/chaos-io/brandcam/profile"
	"github.com/chaos-io/brandcam/studio"
)

// ProfileStore 资料持久化，nil 时只保存在内存里
type ProfileStore interface {
	SaveProfile(ctx context.Context, id string, p profile.Profile) error
}

// Output 最近一帧合成结果，帧循环写、HTTP 读
type Output struct {
	mu    sync.RWMutex
	frame *image.RGBA
	at    time.Time
}

// Present 实现 live.FrameSink
func (o *Output) Present(frame *image.RGBA) error {
	o.mu.Lock()
	o.frame = frame
	o.at = time.Now()
	o.mu.Unlock()
	return nil
}

func (o *Output) Latest() (*image.RGBA, time.Time) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.frame, o.at
}

type Deps struct {
	Studio     *studio.Studio
	Compositor *live.Compositor
	Frames     *live.FrameBuffer
	Output     *Output
	Store      ProfileStore
	ProfileID  string
	Logger     *slog.Logger
}

type Server struct {
	Deps
	engine *gin.Engine
	hub    *hub
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Output == nil {
		d.Output = &Output{}
	}
	if d.Frames == nil {
		d.Frames = live.NewFrameBuffer()
	}
	if d.ProfileID == "" {
		d.ProfileID = "default"
	}
	s := &Server{
		Deps:   d,
		engine: gin.New(),
		hub:    newHub(d.Logger),
	}
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", s.health)
	r.GET("/profile", s.getProfile)
	r.PUT("/profile", s.putProfile)
	r.POST("/background", s.applyBackground)
	r.GET("/background.png", s.backgroundPNG)
	r.GET("/swatch/:hex", s.swatch)
	r.POST("/mode", s.setMode)
	r.POST("/frame", s.postFrame)
	r.POST("/mask", s.postMask)
	r.GET("/output.png", s.outputPNG)
	r.GET("/metrics", s.getMetrics)
	r.GET("/ws", s.ws)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// accessLog 用 slog 记录请求，替代 gin 自带的 Logger
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.Logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Run 监听 addr 并定期向 websocket 推送指标，ctx 结束后优雅退出
func (s *Server) Run(ctx context.Context, addr string, push time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go s.hub.run(ctx, push, s.snapshot)

	s.Logger.Info("http server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

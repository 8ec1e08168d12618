package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/brandcam/compose"
	"github.com/chaos-io/brandcam/live"
	"github.com/chaos-io/brandcam/matte"
	"github.com/chaos-io/brandcam/metrics"
	"github.com/chaos-io/brandcam/palette"
	"github.com/chaos-io/brandcam/profile"
	"github.com/chaos-io/brandcam/segment"
	"github.com/chaos-io/brandcam/studio"
)

// MaxUploadBytes 单次上传的帧或遮罩大小上限
const MaxUploadBytes = 32 << 20

// Status /metrics 和 websocket 推送的内容
type Status struct {
	Type       string            `json:"type"`
	Frame      metrics.Snapshot  `json:"frame"`
	Mode       string            `json:"mode"`
	Background string            `json:"background,omitempty"`
	Warning    string            `json:"warning,omitempty"`
	Frames     uint64            `json:"frames"`
	Masks      segment.SlotStats `json:"masks"`
	Clients    int               `json:"ws_clients"`
}

func (s *Server) snapshot() Status {
	st := Status{
		Type:    "metrics",
		Frame:   s.Compositor.Metrics(),
		Mode:    s.Compositor.Mode().String(),
		Warning: s.Compositor.Warning(),
		Frames:  s.Frames.Count(),
		Masks:   s.Compositor.Masks().Stats(),
		Clients: s.hub.count(),
	}
	if l := s.Compositor.Background(); l != nil {
		st.Background = l.ID
	}
	return st
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func writePNG(c *gin.Context, img image.Image) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		abort(c, http.StatusInternalServerError, fmt.Errorf("encode png: %w", err))
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.Studio.Profile()
	if err != nil {
		abort(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) putProfile(c *gin.Context) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	p, err := profile.Decode(data)
	if err == nil {
		p, err = s.Studio.SetProfile(p)
	}
	if err != nil {
		var ve *profile.ValidationError
		if errors.As(err, &ve) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Error(), "field": ve.Field})
			return
		}
		abort(c, http.StatusBadRequest, err)
		return
	}
	if s.Store != nil {
		if err := s.Store.SaveProfile(c.Request.Context(), s.ProfileID, p); err != nil {
			s.Logger.Error("persist profile failed", "err", err)
			abort(c, http.StatusInternalServerError, err)
			return
		}
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) applyBackground(c *gin.Context) {
	var sel studio.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	res, err := s.Studio.Apply(c.Request.Context(), sel)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) backgroundPNG(c *gin.Context) {
	l := s.Compositor.Background()
	if l == nil {
		abort(c, http.StatusNotFound, errors.New("no background applied"))
		return
	}
	writePNG(c, l.Image)
}

func (s *Server) swatch(c *gin.Context) {
	hex := c.Param("hex")
	if !palette.IsHex(hex) {
		abort(c, http.StatusBadRequest, &palette.HexError{Value: hex})
		return
	}
	img, err := compose.Swatch(hex)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	writePNG(c, img)
}

func (s *Server) setMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	m, err := live.ParseMode(req.Mode)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	s.Compositor.SetMode(m)
	c.JSON(http.StatusOK, gin.H{"mode": m.String()})
}

// postFrame 接收一帧摄像头画面，可以同时带上这一帧的遮罩
func (s *Server) postFrame(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	frame, err := formImage(c, "frame")
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if frame == nil {
		abort(c, http.StatusBadRequest, errors.New("missing form file \"frame\""))
		return
	}
	mask, err := formImage(c, "mask")
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if mask != nil {
		s.Compositor.Masks().Publish(matte.FromImage(mask))
	}
	s.Frames.Write(frame)
	c.JSON(http.StatusAccepted, gin.H{"seq": s.Frames.Count(), "size": frame.Bounds().Size()})
}

// postMask 接收 multipart 的 mask 字段，或者直接是图片 body
func (s *Server) postMask(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	var (
		img image.Image
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		img, err = formImage(c, "mask")
		if err == nil && img == nil {
			err = errors.New("missing form file \"mask\"")
		}
	} else {
		img, _, err = image.Decode(c.Request.Body)
		if err != nil {
			err = fmt.Errorf("decode mask: %w", err)
		}
	}
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	mask := matte.FromImage(img)
	s.Compositor.Masks().Publish(mask)
	c.JSON(http.StatusAccepted, gin.H{"size": mask.Bounds().Size()})
}

func (s *Server) outputPNG(c *gin.Context) {
	frame, at := s.Output.Latest()
	if frame == nil {
		abort(c, http.StatusNotFound, errors.New("no frame composited yet"))
		return
	}
	c.Header("Last-Modified", at.UTC().Format(http.TimeFormat))
	writePNG(c, frame)
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

// formImage 字段不存在时返回 nil, nil
func formImage(c *gin.Context, field string) (image.Image, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read form file %q: %w", field, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open form file %q: %w", field, err)
	}
	defer func() {
		_ = f.Close()
	}()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", field, err)
	}
	return img, nil
}

var _ live.FrameSink = (*Output)(nil)

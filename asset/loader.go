package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	nhttp "github.com/chaos-io/brandcam/util/http"
)

const (
	DefaultTimeout = 5 * time.Second
	// DefaultMaxBytes 单个资源的大小上限
	DefaultMaxBytes = 32 << 20
)

// Kind 加载失败的分类
type Kind int

const (
	KindFetch Kind = iota
	KindNotFound
	KindDecode
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindDecode:
		return "decode"
	case KindTimeout:
		return "timeout"
	default:
		return "fetch"
	}
}

var (
	ErrNotFound = errors.New("asset not found")
	ErrDecode   = errors.New("asset decode failed")
	ErrTimeout  = errors.New("asset load timed out")
	ErrFetch    = errors.New("asset fetch failed")
)

// LoadError 资源加载失败，按 Kind 可以用 errors.Is 匹配对应的哨兵错误
type LoadError struct {
	URI  string
	Kind Kind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load asset %s: %s: %v", e.URI, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrFetch:
		return e.Kind == KindFetch
	}
	return false
}

// Source 按 URI 加载图片
type Source interface {
	Load(ctx context.Context, uri string) (image.Image, error)
}

// Loader 支持 http(s)、file://、data: 以及本地路径
type Loader struct {
	client   nhttp.IClient
	timeout  time.Duration
	maxBytes int64
	logger   *slog.Logger
}

type Option func(*Loader)

func WithClient(c nhttp.IClient) Option {
	return func(l *Loader) { l.client = c }
}

func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		client:   nhttp.NewHTTPClient(),
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 读取并解码一张图片，失败时返回 *LoadError
func (l *Loader) Load(ctx context.Context, uri string) (image.Image, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, &LoadError{URI: uri, Kind: KindNotFound, Err: errors.New("empty uri")}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	data, err := l.read(ctx, uri)
	if err != nil {
		return nil, l.classify(ctx, uri, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{URI: uri, Kind: KindDecode, Err: err}
	}
	l.logger.Debug("asset loaded", "uri", shorten(uri), "format", format,
		"size", img.Bounds().Size(), "elapsed", time.Since(start))
	return img, nil
}

func (l *Loader) read(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "data:"):
		return decodeDataURI(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return l.download(ctx, uri)
	case strings.HasPrefix(uri, "file://"):
		u, err := url.Parse(uri)
		if err != nil {
			return nil, err
		}
		return l.readFile(ctx, u.Path)
	default:
		return l.readFile(ctx, uri)
	}
}

// download 下载图片
func (l *Loader) download(ctx context.Context, uri string) ([]byte, error) {
	var data []byte
	err := l.client.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI:   uri,
		Method:       http.MethodGet,
		Header:       map[string]string{"Accept": "image/*"},
		Response:     &data,
		MaxBodyBytes: l.maxBytes,
	})
	if errors.Is(err, nhttp.ErrBodyTooLarge) {
		return nil, fmt.Errorf("asset too large: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// readFile 打开本地图片，大小上限和远程一致
func (l *Loader) readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, fmt.Errorf("asset too large: %d bytes, limit %d", info.Size(), l.maxBytes)
	}
	return os.ReadFile(path)
}

// decodeDataURI 只支持 base64 编码的 data URI
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("unsupported data uri encoding %q", header)
	}
	return base64.StdEncoding.DecodeString(payload)
}

func (l *Loader) classify(ctx context.Context, uri string, err error) error {
	kind := KindFetch
	var timeout interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &timeout) && timeout.Timeout():
		kind = KindTimeout
	case errors.Is(err, fs.ErrNotExist), nhttp.IsStatus(err, http.StatusNotFound), nhttp.IsStatus(err, http.StatusGone):
		kind = KindNotFound
	case strings.HasPrefix(uri, "data:"):
		kind = KindDecode
	}
	return &LoadError{URI: shorten(uri), Kind: kind, Err: err}
}

// shorten data URI 很长，日志和错误里只保留开头
func shorten(uri string) string {
	if strings.HasPrefix(uri, "data:") && len(uri) > 48 {
		return uri[:48] + "..."
	}
	return uri
}

package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoader_Remote(t *testing.T) {
	t.Parallel()

	data := pngBytes(t, 4, 3, color.RGBA{R: 255, A: 255})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(data)
		case "/broken.png":
			_, _ = w.Write([]byte("not an image"))
		case "/slow.png":
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	loader := NewLoader(WithTimeout(100 * time.Millisecond))
	ctx := context.Background()

	img, err := loader.Load(ctx, server.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 3), img.Bounds().Size())

	_, err = loader.Load(ctx, server.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = loader.Load(ctx, server.URL+"/broken.png")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = loader.Load(ctx, server.URL+"/slow.png")
	assert.ErrorIs(t, err, ErrTimeout)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, KindTimeout, lerr.Kind)
}

func TestLoader_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewLoader().Load(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFetch)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLoader_TooLarge(t *testing.T) {
	t.Parallel()

	data := pngBytes(t, 16, 16, color.RGBA{G: 255, A: 255})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loader := NewLoader(WithMaxBytes(int64(len(data) - 1)))
	for _, uri := range []string{server.URL + "/big.png", path} {
		_, err := loader.Load(context.Background(), uri)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch, uri)
		assert.NotErrorIs(t, err, ErrDecode, uri)
		assert.ErrorContains(t, err, "asset too large")
	}

	// 刚好等于上限可以加载
	img, err := NewLoader(WithMaxBytes(int64(len(data)))).Load(context.Background(), server.URL+"/big.png")
	require.NoError(t, err)
	assert.Equal(t, image.Pt(16, 16), img.Bounds().Size())
}

func TestLoader_Local(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "base.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 8, 8, color.White), 0o644))

	loader := NewLoader()
	ctx := context.Background()

	img, err := loader.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	img, err = loader.Load(ctx, "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dy())

	_, err = loader.Load(ctx, filepath.Join(dir, "nope.png"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = loader.Load(ctx, "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoader_DataURI(t *testing.T) {
	t.Parallel()

	loader := NewLoader()
	ctx := context.Background()

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 2, 2, color.Black))
	img, err := loader.Load(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2, 2), img.Bounds().Size())

	_, err = loader.Load(ctx, "data:image/png;base64,@@@")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = loader.Load(ctx, "data:text/plain,hello")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestLoader_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader().Load(ctx, filepath.Join(t.TempDir(), "x.png"))
	assert.Error(t, err)
}

func TestShorten(t *testing.T) {
	t.Parallel()

	long := "data:image/png;base64," + string(bytes.Repeat([]byte("A"), 100))
	assert.Len(t, shorten(long), 51)
	assert.Equal(t, "/tmp/a.png", shorten("/tmp/a.png"))
}

package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePNG 只需要是一段固定的字节，客户端不关心内容
var fakePNG = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()
	httpClient, ok := client.(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, DefaultTimeout, httpClient.client.Timeout)

	assert.Equal(t, DefaultTimeout, NewHTTPClientWith(nil).client.Timeout)
}

func TestHTTPClient_DoHTTPRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "image/*", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(fakePNG)
		case "/gone.png":
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write([]byte("removed"))
		case "/matte":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("model loading"))
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		name       string
		path       string
		maxBytes   int64
		want       []byte
		wantStatus int
		tooLarge   bool
	}{
		{name: "下载图片", path: "/logo.png", want: fakePNG},
		{name: "刚好等于上限", path: "/logo.png", maxBytes: int64(len(fakePNG)), want: fakePNG},
		{name: "超过上限", path: "/logo.png", maxBytes: int64(len(fakePNG) - 1), tooLarge: true},
		{name: "不存在", path: "/missing.png", wantStatus: http.StatusNotFound},
		{name: "已删除", path: "/gone.png", wantStatus: http.StatusGone},
		{name: "模型未就绪", path: "/matte", wantStatus: http.StatusServiceUnavailable},
		{name: "空响应", path: "/empty", want: []byte{}},
	}

	client := NewHTTPClient()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var data []byte
			err := client.DoHTTPRequest(context.Background(), &RequestParam{
				RequestURI:   server.URL + tt.path,
				Header:       map[string]string{"Accept": "image/*"},
				Response:     &data,
				MaxBodyBytes: tt.maxBytes,
			})

			switch {
			case tt.tooLarge:
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrBodyTooLarge)
				assert.Nil(t, data)
			case tt.wantStatus != 0:
				require.Error(t, err)
				assert.True(t, IsStatus(err, tt.wantStatus), err.Error())
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.wantStatus, se.Code)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, data)
			}
		})
	}
}

func TestHTTPClient_MultipartUpload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() {
			_ = file.Close()
		}()
		assert.Equal(t, "frame.png", header.Filename)
		body, err := io.ReadAll(file)
		require.NoError(t, err)

		// 回显上传的内容当作遮罩
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "frame.png")
	require.NoError(t, err)
	_, err = part.Write(fakePNG)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	var data []byte
	err = NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		RequestURI: server.URL,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &data,
	})
	require.NoError(t, err)
	assert.Equal(t, fakePNG, data)
}

func TestHTTPClient_NilResponseDiscardsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(fakePNG)
	}))
	defer server.Close()

	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{RequestURI: server.URL})
	assert.NoError(t, err)
}

func TestHTTPClient_Errors(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()

	err := client.DoHTTPRequest(context.Background(), nil)
	assert.EqualError(t, err, "request param is nil")

	err = client.DoHTTPRequest(context.Background(), &RequestParam{RequestURI: "://bad"})
	assert.ErrorContains(t, err, "create request")

	err = client.DoHTTPRequest(context.Background(), &RequestParam{RequestURI: "http://127.0.0.1:1/unreachable"})
	assert.ErrorContains(t, err, "do request")
}

func TestHTTPClient_ContextDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		_, _ = w.Write(fakePNG)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var data []byte
	err := NewHTTPClient().DoHTTPRequest(ctx, &RequestParam{RequestURI: server.URL, Response: &data})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err.Error())
	assert.Nil(t, data)
}

func TestIsStatus(t *testing.T) {
	t.Parallel()

	err := &StatusError{Code: http.StatusNotFound, Body: "nope"}
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.False(t, IsStatus(err, http.StatusGone))
	assert.True(t, IsStatus(errors.Join(errors.New("load logo"), err), http.StatusNotFound))
	assert.False(t, IsStatus(errors.New("plain"), http.StatusNotFound))
	assert.True(t, strings.Contains(err.Error(), "404"))
}

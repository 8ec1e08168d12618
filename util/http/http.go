package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout 客户端级别的兜底超时
const DefaultTimeout = 30 * time.Second

// ErrBodyTooLarge 响应体超过 MaxBodyBytes
var ErrBodyTooLarge = errors.New("response body too large")

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 一次请求的参数。Body 原样发送，响应体写入 Response。
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       io.Reader
	Response   *[]byte

	// MaxBodyBytes 大于 0 时限制响应体大小，超出返回 ErrBodyTooLarge
	MaxBodyBytes int64
}

// StatusError 服务端返回了非 2xx 状态码
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %d: %s", e.Code, e.Body)
}

// IsStatus 判断 err 是否为指定状态码的 StatusError
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type HTTPClient struct {
	client *http.Client
}

func NewHTTPClient() IClient {
	return NewHTTPClientWith(&http.Client{Timeout: DefaultTimeout})
}

// NewHTTPClientWith 使用自定义的 http.Client，nil 时使用默认配置
func NewHTTPClientWith(c *http.Client) *HTTPClient {
	if c == nil {
		c = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPClient{client: c}
}

func (c *HTTPClient) DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error {
	if requestParam == nil {
		return errors.New("request param is nil")
	}

	method := requestParam.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, requestParam.RequestURI, requestParam.Body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range requestParam.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := readBody(resp.Body, requestParam.MaxBodyBytes)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if requestParam.Response != nil {
		*requestParam.Response = data
	}
	return nil
}

// readBody 多读一个字节来判断是否超限，避免静默截断
func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

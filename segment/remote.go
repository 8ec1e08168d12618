package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/chaos-io/brandcam/matte"
	nhttp "github.com/chaos-io/brandcam/util/http"
)

/*
Remote 调用 HTTP 抠图服务：

	curl -X POST "$ENDPOINT" -F "image=@frame.png"

响应体是与输入同尺寸的遮罩图（PNG，白色前景或带 alpha）。
服务返回 503 表示模型还没加载好。
*/
type Remote struct {
	endpoint string
	cli      nhttp.IClient
	logger   *slog.Logger
}

func NewRemote(endpoint string, cli nhttp.IClient, logger *slog.Logger) *Remote {
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{endpoint: endpoint, cli: cli, logger: logger}
}

func (r *Remote) Infer(ctx context.Context, frame image.Image) (*image.Alpha, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, frame); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	_ = writer.Close()

	var data []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.endpoint,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType(), "Accept": "image/png"},
		Body:       body,
		Response:   &data,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		if nhttp.IsStatus(err, http.StatusServiceUnavailable) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("do request: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	mask := matte.FromImage(img)
	if mask.Bounds().Empty() {
		return nil, errors.New("decode mask: empty image")
	}

	r.logger.Debug("get the mask", "size", mask.Bounds().Size())
	return mask, nil
}

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/jetsetgo/workshop-console/internal/config"
)

// ImageHost uploads images to the third-party hosting API
type ImageHost struct {
	endpoint string
	apiKey   string
	maxWidth uint
	client   *http.Client
}

// NewImageHost creates an image host client
func NewImageHost(cfg *config.ImageHostConfig) *ImageHost {
	return &ImageHost{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		maxWidth: cfg.MaxWidth,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type imageHostResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Upload sends an image and returns its hosted URL. Wide images are
// downscaled and re-encoded as JPEG first. Every failure, including a 2xx
// answer without a URL, is an AssetUploadError.
func (h *ImageHost) Upload(ctx context.Context, r io.Reader) (string, error) {
	payload, err := h.prepare(r)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", uuid.New().String()+".jpg")
	if err != nil {
		return "", &AssetUploadError{Reason: "build form", Err: err}
	}
	if _, err := part.Write(payload); err != nil {
		return "", &AssetUploadError{Reason: "build form", Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &AssetUploadError{Reason: "build form", Err: err}
	}

	target := h.endpoint
	if h.apiKey != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "key=" + url.QueryEscape(h.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
	if err != nil {
		return "", &AssetUploadError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &AssetUploadError{Reason: "send", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &AssetUploadError{Reason: fmt.Sprintf("host returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}

	var out imageHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &AssetUploadError{Reason: "decode response", Err: err}
	}
	if out.Data.URL == "" {
		return "", &AssetUploadError{Reason: "host returned no url"}
	}
	return out.Data.URL, nil
}

// prepare decodes the image, downscales it to maxWidth and re-encodes as JPEG
func (h *ImageHost) prepare(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &AssetUploadError{Reason: "decode image", Err: err}
	}

	if h.maxWidth > 0 && uint(img.Bounds().Dx()) > h.maxWidth {
		img = resize.Resize(h.maxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, &AssetUploadError{Reason: "encode image", Err: err}
	}
	return buf.Bytes(), nil
}

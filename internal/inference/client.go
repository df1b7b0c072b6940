package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidolu/vision-worker/internal/entity"
)

// Config for the HTTP inference client.
type Config struct {
	// DetectorURL is the object-detection endpoint; it accepts the source
	// image and returns detections plus an annotated copy.
	DetectorURL string
	APIKey      string
	Timeout     time.Duration

	// StorageURL + Bucket describe where annotated artifacts are uploaded.
	StorageURL        string
	Bucket            string
	StorageServiceKey string

	// MinConfidence drops detections below the threshold; zero keeps all.
	MinConfidence float64
	// ClassFilter, when non-empty, keeps only the listed classes.
	ClassFilter []string
}

// Client implements Service over HTTP: download the source image, POST it to
// the detector, upload the annotated JPEG to the storage bucket.
type Client struct {
	cfg    Config
	http   *http.Client
	log    *slog.Logger
	schema map[string]any
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		log:    logger,
		schema: BuildDetectionsJSONSchema(),
	}
}

// detectorResponse is the wire shape of a detector reply.
type detectorResponse struct {
	Detections     entity.DetectionList `json:"detections"`
	AnnotatedImage string               `json:"annotated_image"`
}

func (c *Client) Process(ctx context.Context, sourceURL, filename string) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("inference.start", "req_id", rid, "source", sourceURL, "filename", filename)

	img, err := c.download(ctx, sourceURL)
	if err != nil {
		return Result{}, fmt.Errorf("download image: %w", err)
	}

	resp, err := c.detect(ctx, rid, img)
	if err != nil {
		return Result{}, fmt.Errorf("run detection: %w", err)
	}

	annotated, err := base64.StdEncoding.DecodeString(resp.AnnotatedImage)
	if err != nil {
		return Result{}, fmt.Errorf("decode annotated image: %w", err)
	}

	key := "processed_" + filename
	resultURL, err := c.upload(ctx, key, annotated)
	if err != nil {
		return Result{}, fmt.Errorf("upload processed image: %w", err)
	}

	detections := c.filter(resp.Detections)
	c.log.Info("inference.ok",
		"req_id", rid,
		"detections", len(detections),
		"dropped", len(resp.Detections)-len(detections),
		"result_url", resultURL,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{ResultURL: resultURL, Detections: detections}, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// detect POSTs the raw image to the detector and validates the reply against
// the detections schema before decoding it.
func (c *Client) detect(ctx context.Context, rid string, image []byte) (detectorResponse, error) {
	body := map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return detectorResponse{}, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.DetectorURL, bytes.NewReader(bs))
	if err != nil {
		return detectorResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("inference.detect.send_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return detectorResponse{}, err
	}
	defer c.closeBody(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	c.log.Info("inference.detect.response",
		"req_id", rid,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return detectorResponse{}, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}

	if err := ValidateJSONAgainstSchema(c.schema, raw); err != nil {
		c.log.Error("inference.detect.schema_validation_failed", "req_id", rid, "error", err)
		return detectorResponse{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var out detectorResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return detectorResponse{}, fmt.Errorf("decode detector response: %w", err)
	}
	return out, nil
}

// upload writes the annotated JPEG to the bucket and returns its public URL.
func (c *Client) upload(ctx context.Context, key string, data []byte) (string, error) {
	base := strings.TrimRight(c.cfg.StorageURL, "/")
	endpoint := fmt.Sprintf("%s/object/%s/%s", base, c.cfg.Bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	if c.cfg.StorageServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.StorageServiceKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer c.closeBody(resp.Body)
	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("non-2xx status: %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return fmt.Sprintf("%s/object/public/%s/%s", base, c.cfg.Bucket, key), nil
}

func (c *Client) filter(in entity.DetectionList) entity.DetectionList {
	if c.cfg.MinConfidence <= 0 && len(c.cfg.ClassFilter) == 0 {
		return in
	}
	out := make(entity.DetectionList, 0, len(in))
	for _, d := range in {
		if c.cfg.MinConfidence > 0 && d.Confidence < c.cfg.MinConfidence {
			continue
		}
		if len(c.cfg.ClassFilter) > 0 && !slices.Contains(c.cfg.ClassFilter, d.Class) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.log.Warn("inference.response_body_close_error", "error", err)
	}
}

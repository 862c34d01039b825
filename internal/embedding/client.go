package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync/atomic"
	"time"

	"github.com/facegate/facegate/internal/config"
)

// Client computes face embeddings using the external embedding server.
// Extraction runs model inference on the server side; the client applies
// deterministic preprocessing first so identical bytes produce identical
// uploads.
type Client struct {
	baseURL   string
	model     string
	dim       int
	inputSize int
	timeout   time.Duration
	client    *http.Client
	ready     atomic.Bool
}

// NewClient creates a client for the embedding service. The client is not
// ready until Warmup has completed.
func NewClient(cfg config.ExtractorConfig) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		model:     cfg.Model,
		dim:       cfg.Dim,
		inputSize: cfg.InputSize,
		timeout:   cfg.Timeout,
		client:    &http.Client{},
	}
}

// Dim returns the embedding dimension the client expects.
func (c *Client) Dim() int { return c.dim }

// Model returns the model name being used.
func (c *Client) Model() string { return c.model }

// Ready reports whether warm-up has completed.
func (c *Client) Ready() bool { return c.ready.Load() }

// Warmup probes the embedding server once at startup. Model loading on the
// server side has non-trivial cost, so the first call may be slow; callers
// must not serve identification requests until this returns nil.
func (c *Client) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create warmup request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server not healthy (status %d)", resp.StatusCode)
	}
	c.ready.Store(true)
	return nil
}

type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

type embedResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// ExtractAll detects every face in the image and returns one candidate per
// detection, embeddings unit-normalized. An image with no faces yields an
// empty slice and a nil error; transport and model faults yield an error.
func (c *Client) ExtractAll(ctx context.Context, imageData []byte) ([]FaceCandidate, error) {
	prepared, err := Prepare(imageData, c.inputSize)
	if err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", prepared)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	candidates := make([]FaceCandidate, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		if len(f.Embedding) == 0 {
			return nil, ErrNoEmbedding
		}
		if len(f.Embedding) != c.dim {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(f.Embedding), c.dim)
		}
		candidates = append(candidates, FaceCandidate{
			Index:     f.FaceIndex,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Embedding: Normalize(f.Embedding),
		})
	}
	return candidates, nil
}

// Extract computes a single embedding. When region is non-nil the image is
// cropped to the padded face box first.
func (c *Client) Extract(ctx context.Context, imageData []byte, region []float64) ([]float32, error) {
	data := imageData
	if region != nil {
		cropped, err := CropRegion(imageData, region)
		if err != nil {
			return nil, err
		}
		data = cropped
	}

	prepared, err := Prepare(data, c.inputSize)
	if err != nil {
		return nil, err
	}

	body, err := c.postMultipartImage(ctx, "/embed/image", prepared)
	if err != nil {
		return nil, err
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embResp.Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	if len(embResp.Embedding) != c.dim {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embResp.Embedding), c.dim)
	}
	return Normalize(embResp.Embedding), nil
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint under the per-call timeout.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image magic bytes.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}

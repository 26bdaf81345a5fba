package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"faceattend/internal/domain"
)

// Embedder computes a fixed-length descriptor for a face image. The
// pipeline is agnostic to the concrete model behind it.
type Embedder interface {
	Describe(ctx context.Context, img image.Image) ([]float32, error)
}

// Client calls the external face-embedding service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client with a generous timeout; model inference can
// take a while on cold start.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Describe sends the frame to the face service and returns its embedding.
// An image in which the service finds no face yields a no-match error.
func (c *Client) Describe(ctx context.Context, img image.Image) ([]float32, error) {
	png, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	body, _ := json.Marshal(map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString(png),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(respBody))
	}

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, domain.E(domain.KindNoMatch, "no face detected in image")
	}
	return out.Embedding, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

// StaticEmbedder returns a fixed vector for every frame. Used when
// FACE_SKIP is set so the rest of the system runs without the model.
type StaticEmbedder struct {
	Vector []float32
}

func (s StaticEmbedder) Describe(context.Context, image.Image) ([]float32, error) {
	if len(s.Vector) == 0 {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return append([]float32(nil), s.Vector...), nil
}

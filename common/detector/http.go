package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/skylark/aviary/common/config"
	"github.com/skylark/aviary/common/models"
)

// HTTPDetector calls a remote detection service: the image bytes are POSTed
// as-is and the response is the species -> count mapping as JSON.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDetector creates a detector client for the configured endpoint
func NewHTTPDetector(cfg config.DetectorConfig) *HTTPDetector {
	return &HTTPDetector{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Detect sends the image to the detection service
func (d *HTTPDetector) Detect(ctx context.Context, image []byte) (models.TagCounts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build detector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned %d: %s", resp.StatusCode, body)
	}

	var counts models.TagCounts
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	if counts == nil {
		counts = make(models.TagCounts)
	}
	return counts, nil
}

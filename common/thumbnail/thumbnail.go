package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Generator is the external resize/encode transform. A nil result with a
// nil error means the input could not be thumbnailed; callers treat the
// thumbnail as optional.
type Generator interface {
	Generate(ctx context.Context, image []byte) ([]byte, error)
}

// Func adapts a plain function to the Generator interface (test stubs).
type Func func(ctx context.Context, image []byte) ([]byte, error)

// Generate calls the function
func (f Func) Generate(ctx context.Context, image []byte) ([]byte, error) {
	return f(ctx, image)
}

// HTTPGenerator calls a remote thumbnailing service.
type HTTPGenerator struct {
	endpoint string
	client   *http.Client
}

// NewHTTPGenerator creates a thumbnail client for the given endpoint
func NewHTTPGenerator(endpoint string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate sends the image and returns the encoded thumbnail bytes
func (g *HTTPGenerator) Generate(ctx context.Context, image []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build thumbnail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call thumbnailer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		// Not an image the transform can handle; record goes without one.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnailer returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

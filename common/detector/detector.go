package detector

import (
	"context"

	"github.com/skylark/aviary/common/models"
)

// Detector maps raw image bytes to a species -> count mapping. An empty
// mapping signals "nothing detected", never an error.
type Detector interface {
	Detect(ctx context.Context, image []byte) (models.TagCounts, error)
}

// Func adapts a plain function to the Detector interface (test stubs).
type Func func(ctx context.Context, image []byte) (models.TagCounts, error)

// Detect calls the function
func (f Func) Detect(ctx context.Context, image []byte) (models.TagCounts, error) {
	return f(ctx, image)
}

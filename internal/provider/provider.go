// Package provider defines the external image-generation capability.
package provider

import (
	"context"

	"github.com/sakif/fluxgate/internal/model"
)

// ImageProvider turns a parameter bundle into a URL of the generated image.
// Implementations must honor ctx cancellation and deadlines.
type ImageProvider interface {
	Generate(ctx context.Context, req model.ImageRequest) (string, error)
}

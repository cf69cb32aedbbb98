package ports

import (
	"context"
	"io"

	"github.com/tapestrylab/weft/pkg/domain"
)

// GenerateRequest is the wire contract consumed by the stream ingester.
// CurrentSpec carries the partial document on repair rounds so the model
// can patch what already exists instead of starting over.
type GenerateRequest struct {
	Prompt      string         `json:"prompt"`
	Context     map[string]any `json:"context,omitempty"`
	CurrentSpec *domain.Spec   `json:"currentSpec,omitempty"`
}

// Generator produces a newline-delimited JSON edit stream for a request.
// The returned reader is the live response body; the caller owns closing
// it. Cancelling ctx aborts the stream and is treated as intentional.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (io.ReadCloser, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (io.ReadCloser, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}

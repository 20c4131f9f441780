package imagegen

import (
	"context"
	"time"
)

// ImageProvider produces an image reference for a prompt. It is the only
// seam that needs to change to use a real generation backend.
type ImageProvider interface {
	// Generate returns a URL of the generated image. Callers must validate
	// prompt before calling; implementations may fail for any reason.
	Generate(ctx context.Context, prompt string) (string, error)
}

type boundedProvider struct {
	provider ImageProvider
	timeout  time.Duration
}

// Bounded limits every Generate call of provider to timeout. A non-positive
// timeout returns provider unchanged.
func Bounded(provider ImageProvider, timeout time.Duration) ImageProvider {
	if timeout <= 0 {
		return provider
	}
	return &boundedProvider{provider: provider, timeout: timeout}
}

func (b *boundedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.provider.Generate(ctx, prompt)
}

package imagegen

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/utils/logging"
)

// DefaultDelay simulates the latency of a generation backend
const DefaultDelay = 2000 * time.Millisecond

// DefaultImages are stock images returned regardless of the prompt
var DefaultImages = []string{
	"https://images.pexels.com/photos/3075993/pexels-photo-3075993.jpeg",
	"https://images.pexels.com/photos/3113835/pexels-photo-3113835.jpeg",
	"https://images.pexels.com/photos/4100130/pexels-photo-4100130.jpeg",
	"https://images.pexels.com/photos/3648850/pexels-photo-3648850.jpeg",
	"https://images.pexels.com/photos/3222686/pexels-photo-3222686.jpeg",
}

// Placeholder is a stub ImageProvider. It waits for a fixed delay and returns
// one of its images picked uniformly at random.
type Placeholder struct {
	images []string
	delay  time.Duration
	pick   func(n int) int
}

var _ ImageProvider = (*Placeholder)(nil)

// PlaceholderOption is a functional option for Placeholder
type PlaceholderOption func(*Placeholder)

// WithDelay sets the simulated latency. Zero disables waiting.
func WithDelay(d time.Duration) PlaceholderOption {
	return func(p *Placeholder) {
		p.delay = d
	}
}

// WithImages replaces the image catalog
func WithImages(images []string) PlaceholderOption {
	return func(p *Placeholder) {
		p.images = append([]string(nil), images...)
	}
}

// WithPicker replaces the random index source. pick must return a value in [0, n).
func WithPicker(pick func(n int) int) PlaceholderOption {
	return func(p *Placeholder) {
		p.pick = pick
	}
}

// NewPlaceholder creates a Placeholder with the default catalog and delay
func NewPlaceholder(opts ...PlaceholderOption) *Placeholder {
	p := &Placeholder{
		images: DefaultImages,
		delay:  DefaultDelay,
		pick:   rand.IntN,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Generate ignores prompt. It fails only when ctx is done before the delay
// elapses or the catalog is empty.
func (p *Placeholder) Generate(ctx context.Context, prompt string) (string, error) {
	if len(p.images) == 0 {
		return "", goerr.New("no placeholder image is configured")
	}

	logging.Component(ctx, "imagegen").Debug("generating placeholder image",
		"prompt", prompt,
		"delay", p.delay)

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return "", goerr.Wrap(ctx.Err(), "image generation interrupted")
		case <-timer.C:
		}
	}

	return p.images[p.pick(len(p.images))], nil
}

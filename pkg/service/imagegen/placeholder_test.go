package imagegen_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/promptshot/pkg/service/imagegen"
)

func TestPlaceholderReturnsCatalogImage(t *testing.T) {
	p := imagegen.NewPlaceholder(imagegen.WithDelay(0))

	for i := 0; i < 50; i++ {
		url, err := p.Generate(context.Background(), "a cat")
		gt.NoError(t, err)
		gt.True(t, slices.Contains(imagegen.DefaultImages, url))
	}
}

func TestPlaceholderDefaultCatalog(t *testing.T) {
	gt.A(t, imagegen.DefaultImages).Length(5)
	gt.Equal(t, imagegen.DefaultDelay, 2*time.Second)
}

func TestPlaceholderIgnoresPrompt(t *testing.T) {
	p := imagegen.NewPlaceholder(
		imagegen.WithDelay(0),
		imagegen.WithPicker(func(n int) int { return n - 1 }),
	)

	a, err := p.Generate(context.Background(), "a cat")
	gt.NoError(t, err)
	b, err := p.Generate(context.Background(), "a completely different prompt")
	gt.NoError(t, err)
	gt.Equal(t, a, b)
	gt.Equal(t, a, imagegen.DefaultImages[4])
}

func TestPlaceholderPickerRange(t *testing.T) {
	var gotN []int
	p := imagegen.NewPlaceholder(
		imagegen.WithDelay(0),
		imagegen.WithImages([]string{"x", "y"}),
		imagegen.WithPicker(func(n int) int {
			gotN = append(gotN, n)
			return 1
		}),
	)

	url, err := p.Generate(context.Background(), "p")
	gt.NoError(t, err)
	gt.Equal(t, url, "y")
	gt.Equal(t, gotN, []int{2})
}

func TestPlaceholderWaitsForDelay(t *testing.T) {
	p := imagegen.NewPlaceholder(imagegen.WithDelay(50 * time.Millisecond))

	start := time.Now()
	_, err := p.Generate(context.Background(), "p")
	gt.NoError(t, err)
	gt.True(t, time.Since(start) >= 50*time.Millisecond)
}

func TestPlaceholderContextCanceled(t *testing.T) {
	p := imagegen.NewPlaceholder(imagegen.WithDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, "p")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPlaceholderEmptyCatalog(t *testing.T) {
	p := imagegen.NewPlaceholder(imagegen.WithDelay(0), imagegen.WithImages(nil))
	_, err := p.Generate(context.Background(), "p")
	gt.Error(t, err)
}

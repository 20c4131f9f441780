package imagegen

import (
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Catalog is the YAML configuration of the placeholder provider
//
//	images:
//	  - https://example.com/a.jpeg
//	delay_ms: 500
type Catalog struct {
	Images  []string `yaml:"images"`
	DelayMS *int     `yaml:"delay_ms"`
}

// Validate checks if the catalog is usable
func (c *Catalog) Validate() error {
	if len(c.Images) == 0 {
		return goerr.New("catalog has no image")
	}
	for i, img := range c.Images {
		if strings.TrimSpace(img) == "" {
			return goerr.New("catalog has an empty image", goerr.V("index", i))
		}
	}
	if c.DelayMS != nil && *c.DelayMS < 0 {
		return goerr.New("delay_ms must not be negative", goerr.V("delay_ms", *c.DelayMS))
	}
	return nil
}

// Options converts the catalog into Placeholder options. A missing delay_ms
// keeps DefaultDelay.
func (c *Catalog) Options() []PlaceholderOption {
	opts := []PlaceholderOption{WithImages(c.Images)}
	if c.DelayMS != nil {
		opts = append(opts, WithDelay(time.Duration(*c.DelayMS)*time.Millisecond))
	}
	return opts
}

// LoadCatalog reads and validates a catalog file
func LoadCatalog(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V("path", path))
	}

	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return nil, goerr.Wrap(err, "failed to parse catalog file", goerr.V("path", path))
	}

	if err := catalog.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid catalog", goerr.V("path", path))
	}

	return &catalog, nil
}

// Package catalog holds the search configuration of every entity kind.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mlcatalog/mlsearch/internal/domain"
	"github.com/mlcatalog/mlsearch/internal/domain/search/searchconfig"
)

//go:embed entities.yaml
var entitiesYAML []byte

type document struct {
	Entities []searchconfig.Config `yaml:"entities"`
}

// Catalog is the read-only set of search configurations.
type Catalog struct {
	configs map[domain.EntityTag]searchconfig.Config
	order   []domain.EntityTag
}

// Load parses the embedded catalog and requires every entity kind to be present.
func Load() (*Catalog, error) {
	c, err := Parse(entitiesYAML)
	if err != nil {
		return nil, err
	}
	for _, e := range domain.Entities {
		if _, ok := c.configs[e]; !ok {
			return nil, fmt.Errorf("%w: catalog has no %s config", domain.ErrInvalidConfig, e)
		}
	}
	return c, nil
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{configs: make(map[domain.EntityTag]searchconfig.Config, len(doc.Entities))}
	for i := range doc.Entities {
		cfg := doc.Entities[i]
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.configs[cfg.Entity]; dup {
			return nil, fmt.Errorf("%w: duplicate config for %s", domain.ErrInvalidConfig, cfg.Entity)
		}
		c.configs[cfg.Entity] = cfg
		c.order = append(c.order, cfg.Entity)
	}
	return c, nil
}

// Get returns the configuration for an entity kind.
func (c *Catalog) Get(tag domain.EntityTag) (searchconfig.Config, error) {
	cfg, ok := c.configs[tag]
	if !ok {
		return searchconfig.Config{}, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, tag)
	}
	return cfg, nil
}

// Lookup resolves a raw entity name, as found in a URL path.
func (c *Catalog) Lookup(name string) (searchconfig.Config, error) {
	return c.Get(domain.EntityTag(name))
}

// Entities returns the configured entity kinds in document order.
func (c *Catalog) Entities() []domain.EntityTag {
	out := make([]domain.EntityTag, len(c.order))
	copy(out, c.order)
	return out
}

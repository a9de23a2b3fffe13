package config

import (
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Document is the raw configuration tree as parsed from YAML, before
// interpolation. Top-level attributes are the named sections (basic_info,
// simulation, baseline, stage-script lists, ...). Immutable once parsed.
type Document struct {
	root cty.Value
}

// LoadFile reads and parses a configuration document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a YAML document into the raw configuration tree.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newErrorf("invalid YAML document: %v", err)
	}
	if raw == nil {
		return nil, newErrorf("configuration document is empty")
	}
	root, err := fromYAML(raw)
	if err != nil {
		return nil, newErrorf("invalid configuration value: %v", err)
	}
	if !root.Type().IsObjectType() {
		return nil, newErrorf("configuration root must be a mapping")
	}
	return &Document{root: root}, nil
}

// Root returns the underlying value tree.
func (d *Document) Root() cty.Value {
	return d.root
}

// Section returns the value of a top-level section and whether it exists.
func (d *Document) Section(name string) (cty.Value, bool) {
	if !d.root.Type().HasAttribute(name) {
		return cty.NilVal, false
	}
	return d.root.GetAttr(name), true
}

package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Document formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const currentVersion = 1

// document is the persisted form:
//
//	{"version": 1, "variables": {"temp": {"units": "degree_Celsius", ...}}}
type document struct {
	Version   int              `json:"version" yaml:"version"`
	Variables map[string]entry `json:"variables" yaml:"variables"`
}

type entry struct {
	Units       string    `json:"units" yaml:"units"`
	FailSpan    []float64 `json:"fail_span" yaml:"fail_span"`
	SuspectSpan []float64 `json:"suspect_span" yaml:"suspect_span"`
	Patterns    []string  `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}

func toSpan(name, field string, v []float64) (Span, error) {
	if len(v) != 2 {
		return Span{}, fmt.Errorf("%w: %s: %s needs exactly 2 values, got %d", ErrInvalidDefinition, name, field, len(v))
	}
	return Span{v[0], v[1]}, nil
}

// Decode parses a catalog document.
func Decode(data []byte, format string) (*Catalog, error) {
	var doc document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
	case FormatYAML:
		if err := yaml.UnmarshalStrict(data, &doc); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	if doc.Version > currentVersion {
		return nil, fmt.Errorf("catalog version %d is newer than supported version %d", doc.Version, currentVersion)
	}

	defs := make([]Definition, 0, len(doc.Variables))
	for name, e := range doc.Variables {
		fail, err := toSpan(name, "fail_span", e.FailSpan)
		if err != nil {
			return nil, err
		}
		suspect, err := toSpan(name, "suspect_span", e.SuspectSpan)
		if err != nil {
			return nil, err
		}
		defs = append(defs, Definition{
			Name:        name,
			Units:       e.Units,
			FailSpan:    fail,
			SuspectSpan: suspect,
			Patterns:    e.Patterns,
		})
	}
	return New(defs)
}

// Encode writes c in the given format.
func Encode(c *Catalog, format string) ([]byte, error) {
	doc := document{Version: currentVersion, Variables: make(map[string]entry, c.Len())}
	for _, d := range c.Definitions() {
		doc.Variables[d.Name] = entry{
			Units:       d.Units,
			FailSpan:    []float64{d.FailSpan.Low(), d.FailSpan.High()},
			SuspectSpan: []float64{d.SuspectSpan.Low(), d.SuspectSpan.High()},
			Patterns:    d.Patterns,
		}
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
}

// FormatFor picks a format from a file extension.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads a catalog file; the format follows the extension.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

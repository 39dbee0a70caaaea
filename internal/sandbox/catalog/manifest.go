package catalog

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
)

const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["slug", "title"],
  "properties": {
    "id": {"type": ["string", "integer"]},
    "slug": {"type": "string", "pattern": "^[A-Za-z0-9][A-Za-z0-9._~-]{0,127}$"},
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "preview_url": {"type": "string"},
    "is_active": {"type": "boolean"},
    "markup": {"type": "string"},
    "style": {"type": "string"},
    "script": {"type": "string"}
  },
  "additionalProperties": false
}`

var schema = mustCompile(manifestSchema)

func mustCompile(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.json", doc); err != nil {
		panic(err)
	}
	return c.MustCompile("manifest.json")
}

type manifest struct {
	ID          bundle.ID `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PreviewURL  string    `json:"preview_url"`
	IsActive    *bool     `json:"is_active"`
	Markup      string    `json:"markup"`
	Style       string    `json:"style"`
	Script      string    `json:"script"`
}

// parseManifest decodes data by the file extension, validates it and
// returns the bundle it describes.
func parseManifest(path string, data []byte) (bundle.ToolBundle, error) {
	var raw any
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		var m map[string]any
		err = toml.Unmarshal(data, &m)
		raw = m
	case ".json":
		err = sonic.Unmarshal(data, &raw)
	default:
		return bundle.ToolBundle{}, fmt.Errorf("%s: unsupported manifest format", path)
	}
	if err != nil {
		return bundle.ToolBundle{}, fmt.Errorf("%s: decode manifest: %w", path, err)
	}

	// Round-trip through JSON so every format validates with JSON types.
	normalized, err := sonic.Marshal(raw)
	if err != nil {
		return bundle.ToolBundle{}, fmt.Errorf("%s: normalize manifest: %w", path, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(normalized))
	if err != nil {
		return bundle.ToolBundle{}, fmt.Errorf("%s: normalize manifest: %w", path, err)
	}
	if err := schema.Validate(doc); err != nil {
		return bundle.ToolBundle{}, fmt.Errorf("%s: invalid manifest: %w", path, err)
	}

	var m manifest
	if err := sonic.Unmarshal(normalized, &m); err != nil {
		return bundle.ToolBundle{}, fmt.Errorf("%s: decode manifest: %w", path, err)
	}

	active := true
	if m.IsActive != nil {
		active = *m.IsActive
	}
	id := m.ID
	if id == "" {
		id = bundle.ID(m.Slug)
	}
	return bundle.ToolBundle{
		ID:          id,
		Slug:        m.Slug,
		Title:       m.Title,
		Description: m.Description,
		PreviewURL:  m.PreviewURL,
		IsActive:    active,
		Markup:      m.Markup,
		Style:       m.Style,
		Script:      m.Script,
	}, nil
}

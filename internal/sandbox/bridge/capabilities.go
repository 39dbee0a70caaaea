// Package bridge renders the read-only capability bridge that guest scripts
// use to reach brand data.
//
// The bridge is a frozen window.BrandHub object. Every operation performs its
// own fetch and turns any failure into a fresh empty default, so one broken
// endpoint never affects another and guest code never sees a rejection.
package bridge

// Version is exposed to guests as BrandHub.version.
const Version = "1.0"

// Shape is the JSON shape a capability resolves to.
type Shape string

const (
	ShapeObject Shape = "object"
	ShapeArray  Shape = "array"
)

// Capability is one bridge operation.
type Capability struct {
	Name        string `json:"name"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Shape       Shape  `json:"shape"`
	Field       string `json:"field,omitempty"`
	Description string `json:"description"`
}

// Default returns a fresh empty value of the capability's shape.
func (c Capability) Default() any {
	if c.Shape == ShapeArray {
		return []any{}
	}
	return map[string]any{}
}

// The table is append-only: guests depend on every name staying put.
var capabilities = []Capability{
	{
		Name:        "getBrandAssets",
		Method:      "GET",
		Path:        "/assets/grouped",
		Shape:       ShapeObject,
		Description: "All assets grouped by category and subcategory",
	},
	{
		Name:        "getBrandImagery",
		Method:      "GET",
		Path:        "/assets?section=imagery",
		Shape:       ShapeArray,
		Field:       "assets",
		Description: "Imagery asset records",
	},
	{
		Name:        "getBrandColors",
		Method:      "GET",
		Path:        "/colors",
		Shape:       ShapeArray,
		Field:       "colors",
		Description: "Color palette records",
	},
	{
		Name:        "getForTools",
		Method:      "GET",
		Path:        "/assets/for-tools",
		Shape:       ShapeObject,
		Description: "Curated brand data for embedding, with resolved URLs",
	},
}

// Capabilities returns a copy of the capability table.
func Capabilities() []Capability {
	return append([]Capability(nil), capabilities...)
}

// Lookup finds a capability by name.
func Lookup(name string) (Capability, bool) {
	for _, c := range capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// Coerce applies the same shape rules as the guest bridge to decoded JSON:
// arrays may arrive bare or wrapped in Field, objects must be objects, and
// anything else becomes the default.
func (c Capability) Coerce(data any) any {
	if c.Shape == ShapeArray {
		switch v := data.(type) {
		case []any:
			return v
		case map[string]any:
			if inner, ok := v[c.Field].([]any); ok && c.Field != "" {
				return inner
			}
		}
		return c.Default()
	}
	if obj, ok := data.(map[string]any); ok {
		return obj
	}
	return c.Default()
}

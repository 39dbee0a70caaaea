// Package bundle defines tool bundles and the resolvers that look them up.
//
// A ToolBundle is the operator-authored unit of embedded functionality:
// markup, style and script text plus listing metadata. Content fields are
// opaque to this package and are never parsed or rewritten.
package bundle

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
)

// ID is a bundle identifier. The asset API has used both numeric and string
// ids, so both JSON forms decode into the same string value.
type ID string

// UnmarshalJSON accepts "42" and 42 alike.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("bundle id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("bundle id: unsupported value %s", data)
	}
	*id = ID(data)
	return nil
}

func (id ID) String() string { return string(id) }

// ToolBundle is a complete bundle including its content fields.
type ToolBundle struct {
	ID          ID     `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Markup      string `json:"markup"`
	Style       string `json:"style"`
	Script      string `json:"script"`
	PreviewURL  string `json:"preview_url,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Summary is a bundle without content fields, for listing UIs.
type Summary struct {
	ID          ID     `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	IsActive    bool   `json:"is_active"`
}

var strict = bluemonday.StrictPolicy()

// Summary strips content fields. Title and description are passed through a
// strict sanitizer because listing UIs render them as HTML.
func (b ToolBundle) Summary() Summary {
	return Summary{
		ID:          b.ID,
		Slug:        b.Slug,
		Title:       strict.Sanitize(b.Title),
		Description: strict.Sanitize(b.Description),
		PreviewURL:  b.PreviewURL,
		IsActive:    b.IsActive,
	}
}

// Resolver looks up bundles by slug.
type Resolver interface {
	// ResolveBySlug returns an active bundle or a *ResolveError.
	ResolveBySlug(ctx context.Context, slug string) (*ToolBundle, error)
	// ListActive returns summaries of every active bundle.
	ListActive(ctx context.Context) ([]Summary, error)
}

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._~-]{0,127}$`)

// ValidSlug reports whether slug is non-empty and URL-safe.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

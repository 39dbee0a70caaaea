package bundle

import (
	"bytes"
	"context"
	"errors"
	"net/url"

	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// JSONGetter is the slice of the asset API client the resolver needs.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// APIResolver resolves bundles through the asset API.
type APIResolver struct {
	api    JSONGetter
	group  singleflight.Group
	logger *zap.Logger
}

// NewAPIResolver creates a resolver over api.
func NewAPIResolver(api JSONGetter, logger *zap.Logger) *APIResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIResolver{api: api, logger: logger.Named("bundles")}
}

// wireBundle mirrors the API payload. The API has served both snake_case and
// camelCase keys; is_active is optional and defaults to true when absent.
type wireBundle struct {
	ID          ID     `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markup      string `json:"markup"`
	Style       string `json:"style"`
	Script      string `json:"script"`
	PreviewURL  string `json:"preview_url"`
	IsActive    *bool  `json:"is_active"`

	PreviewURLCamel string `json:"previewUrl"`
	IsActiveCamel   *bool  `json:"isActive"`
}

// active is false when either spelling says so.
func (w wireBundle) active() bool {
	for _, v := range []*bool{w.IsActive, w.IsActiveCamel} {
		if v != nil && !*v {
			return false
		}
	}
	return true
}

func (w wireBundle) previewURL() string {
	if w.PreviewURL != "" {
		return w.PreviewURL
	}
	return w.PreviewURLCamel
}

func (w wireBundle) bundle() ToolBundle {
	return ToolBundle{
		ID:          w.ID,
		Slug:        w.Slug,
		Title:       w.Title,
		Description: w.Description,
		Markup:      w.Markup,
		Style:       w.Style,
		Script:      w.Script,
		PreviewURL:  w.previewURL(),
		IsActive:    w.active(),
	}
}

// toolList accepts either a bare array or {"tools": [...]}.
type toolList []wireBundle

func (l *toolList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var env struct {
			Tools []wireBundle `json:"tools"`
		}
		if err := sonic.Unmarshal(data, &env); err != nil {
			return err
		}
		*l = env.Tools
		return nil
	}
	var arr []wireBundle
	if err := sonic.Unmarshal(data, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}

// ResolveBySlug implements Resolver. Concurrent lookups of one slug share a
// single request; each caller receives its own copy.
func (r *APIResolver) ResolveBySlug(ctx context.Context, slug string) (*ToolBundle, error) {
	if !ValidSlug(slug) {
		return nil, NotFound(slug)
	}

	// The shared request outlives any single caller; each caller still
	// honors its own ctx while waiting.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(slug, func() (interface{}, error) {
		var w wireBundle
		if err := r.api.GetJSON(shared, "/tools/slug/"+url.PathEscape(slug), nil, &w); err != nil {
			return nil, r.classify(slug, err)
		}
		b := w.bundle()
		if b.Slug != slug {
			return nil, &ResolveError{Slug: slug, Kind: KindInvalid,
				Err: errors.New("response slug " + b.Slug + " does not match")}
		}
		if !b.IsActive {
			return nil, NotFound(slug)
		}
		return &b, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		b := *res.Val.(*ToolBundle)
		return &b, nil
	case <-ctx.Done():
		return nil, &ResolveError{Slug: slug, Kind: KindTransport, Err: ctx.Err()}
	}
}

// ListActive implements Resolver.
func (r *APIResolver) ListActive(ctx context.Context) ([]Summary, error) {
	var list toolList
	if err := r.api.GetJSON(ctx, "/tools", nil, &list); err != nil {
		return nil, r.classify("", err)
	}

	out := make([]Summary, 0, len(list))
	for _, w := range list {
		b := w.bundle()
		if !b.IsActive || !ValidSlug(b.Slug) {
			continue
		}
		out = append(out, b.Summary())
	}
	return out, nil
}

func (r *APIResolver) classify(slug string, err error) error {
	kind := KindTransport
	var de *assetapi.DecodeError
	switch {
	case assetapi.IsNotFound(err):
		kind = KindNotFound
	case errors.As(err, &de):
		kind = KindInvalid
	}

	if kind != KindNotFound {
		r.logger.Warn("tool lookup failed",
			zap.String("slug", slug),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	return &ResolveError{Slug: slug, Kind: kind, Err: err}
}

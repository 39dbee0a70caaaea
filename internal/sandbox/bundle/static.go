package bundle

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Static is an in-memory Resolver.
type Static struct {
	mu      sync.RWMutex
	bundles map[string]ToolBundle
}

// NewStatic builds a resolver from bundles. Duplicate slugs are an error.
func NewStatic(bundles ...ToolBundle) (*Static, error) {
	s := &Static{bundles: make(map[string]ToolBundle, len(bundles))}
	for _, b := range bundles {
		if !ValidSlug(b.Slug) {
			return nil, fmt.Errorf("bundle %q: invalid slug", b.Slug)
		}
		if _, dup := s.bundles[b.Slug]; dup {
			return nil, fmt.Errorf("bundle %q: duplicate slug", b.Slug)
		}
		s.bundles[b.Slug] = b
	}
	return s, nil
}

// Put adds or replaces a bundle.
func (s *Static) Put(b ToolBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.Slug] = b
}

// ResolveBySlug implements Resolver.
func (s *Static) ResolveBySlug(_ context.Context, slug string) (*ToolBundle, error) {
	s.mu.RLock()
	b, ok := s.bundles[slug]
	s.mu.RUnlock()

	if !ok || !b.IsActive {
		return nil, NotFound(slug)
	}
	return &b, nil
}

// ListActive implements Resolver. Results are ordered by title, then slug.
func (s *Static) ListActive(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.bundles))
	for _, b := range s.bundles {
		if b.IsActive {
			out = append(out, b.Summary())
		}
	}
	s.mu.RUnlock()

	sortSummaries(out)
	return out, nil
}

func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Title != s[j].Title {
			return s[i].Title < s[j].Title
		}
		return s[i].Slug < s[j].Slug
	})
}

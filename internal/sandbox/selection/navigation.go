// Package selection decides which tool a view shows and drives rendering.
//
// The active slug lives in the "tool" query parameter of the view's address,
// so a shared address reproduces the same tool and parameters.
package selection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
)

// QueryKey is the query parameter holding the active slug.
const QueryKey = "tool"

// ErrInvalidNavigation is returned for an address that does not parse.
var ErrInvalidNavigation = errors.New("invalid navigation")

// Navigation is a view's address. Query order is preserved across edits.
type Navigation struct {
	mu sync.RWMutex
	u  url.URL
}

// NewNavigation parses raw, which may be a full URL, a path or a bare
// query such as "?tool=x".
func NewNavigation(raw string) (*Navigation, error) {
	n := &Navigation{}
	if err := n.Replace(raw); err != nil {
		return nil, err
	}
	return n, nil
}

// Replace swaps the whole address.
func (n *Navigation) Replace(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidNavigation, raw, err)
	}
	u.Fragment = ""
	n.mu.Lock()
	n.u = *u
	n.mu.Unlock()
	return nil
}

// Slug returns the active slug, or "".
func (n *Navigation) Slug() string {
	return n.Params()[QueryKey]
}

// Params extracts invocation parameters from the current query. The tool key
// is included.
func (n *Navigation) Params() params.Params {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return params.Extract(n.u.RawQuery)
}

// SetSlug reflects slug into the query, replacing any previous value and
// keeping every other parameter.
func (n *Navigation) SetSlug(slug string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pairs := withoutKey(n.u.RawQuery, QueryKey)
	n.u.RawQuery = strings.Join(append(pairs, QueryKey+"="+url.QueryEscape(slug)), "&")
}

// ClearSlug removes the slug from the query.
func (n *Navigation) ClearSlug() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.u.RawQuery = strings.Join(withoutKey(n.u.RawQuery, QueryKey), "&")
}

func (n *Navigation) String() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.u.String()
}

func withoutKey(rawQuery, key string) []string {
	var out []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, _, _ := strings.Cut(pair, "=")
		if name, err := url.QueryUnescape(k); err == nil && name == key {
			continue
		}
		out = append(out, pair)
	}
	return out
}

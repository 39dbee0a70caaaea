package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
)

// ManifestPattern matches manifest files relative to the catalog root.
const ManifestPattern = "**/bundle.{yaml,yml,toml,json}"

// Content files next to a manifest, by the field they override.
const (
	MarkupFile = "markup.html"
	StyleFile  = "style.css"
	ScriptFile = "script.js"
)

// Load walks dir and returns a resolver over every bundle found. Any
// malformed manifest or duplicate slug fails the whole load.
func Load(ctx context.Context, dir string, logger *zap.Logger) (*bundle.Static, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("catalog")

	paths, err := discover(ctx, dir)
	if err != nil {
		return nil, err
	}

	bundles := make([]bundle.ToolBundle, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		b, err := loadBundle(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[b.Slug]; dup {
			return nil, fmt.Errorf("duplicate slug %q in %s and %s", b.Slug, prev, path)
		}
		seen[b.Slug] = path
		bundles = append(bundles, b)
		logger.Debug("bundle loaded", zap.String("slug", b.Slug), zap.String("manifest", path))
	}

	logger.Info("catalog loaded", zap.String("dir", dir), zap.Int("bundles", len(bundles)))
	return bundle.NewStatic(bundles...)
}

// discover returns manifest paths under dir in lexical order.
func discover(ctx context.Context, dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog dir %s: not a directory", dir)
	}

	var (
		mu    sync.Mutex
		found []string
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if ok, _ := doublestar.Match(ManifestPattern, filepath.ToSlash(rel)); ok {
			mu.Lock()
			found = append(found, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk catalog: %w", err)
	}

	sort.Strings(found)
	return found, nil
}

func loadBundle(path string) (bundle.ToolBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bundle.ToolBundle{}, err
	}
	b, err := parseManifest(path, data)
	if err != nil {
		return bundle.ToolBundle{}, err
	}

	dir := filepath.Dir(path)
	for name, field := range map[string]*string{
		MarkupFile: &b.Markup,
		StyleFile:  &b.Style,
		ScriptFile: &b.Script,
	} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return bundle.ToolBundle{}, err
		}
		text, err := decodeText(filepath.Join(dir, name), content)
		if err != nil {
			return bundle.ToolBundle{}, err
		}
		*field = text
	}
	return b, nil
}

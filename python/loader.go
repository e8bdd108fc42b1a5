package python

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nrser/docspec"
)

// ErrModuleNotFound is returned when a dotted module name cannot be resolved
// on the loader's search path.
var ErrModuleNotFound = errors.New("module not found")

// cacheSize bounds the loader's parse cache. Entries are whole parsed
// modules, keyed by absolute file path.
const cacheSize = 512

type cacheEntry struct {
	hash   string
	module *docspec.Module
}

// Loader resolves dotted module names against a search path and parses them
// into docspec modules. Parse results are cached by content hash, so
// re-requesting an unchanged file is free.
type Loader struct {
	searchPath []string
	excludes   []string
	parser     *Parser
	cache      *lru.Cache[string, cacheEntry]
}

// NewLoader creates a loader over the given search path. A nil excludes
// falls back to DefaultExcludePatterns.
func NewLoader(searchPath []string, excludes []string, options ParserOptions) *Loader {
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &Loader{
		searchPath: searchPath,
		excludes:   excludes,
		parser:     NewParser(options),
		cache:      cache,
	}
}

// SearchPath returns the loader's search path.
func (l *Loader) SearchPath() []string { return l.searchPath }

// ResolveModule resolves a dotted module name to a file or package directory
// on the search path.
func (l *Loader) ResolveModule(name string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/"))

	for _, dir := range l.searchPath {
		if path := filepath.Join(dir, rel+".py"); isFile(path) {
			return path, nil
		}
		if path := filepath.Join(dir, rel, "__init__.py"); isFile(path) {
			return filepath.Dir(path), nil
		}
	}
	return "", fmt.Errorf("%w: %s (search path: %s)", ErrModuleNotFound, name, strings.Join(l.searchPath, string(os.PathListSeparator)))
}

// RequireModule parses the single module with the given dotted name. A
// package resolves to its __init__ module.
func (l *Loader) RequireModule(ctx context.Context, name string) (*docspec.Module, error) {
	path, err := l.ResolveModule(name)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, "__init__.py")
	}
	return l.parseCached(ctx, path, name)
}

// LoadPackage parses the package with the given dotted name and all of its
// submodules. Within each directory the __init__ module comes first,
// remaining files in sorted order. Files that fail to parse abort the load.
func (l *Loader) LoadPackage(ctx context.Context, name string) ([]*docspec.Module, error) {
	root, err := l.ResolveModule(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat package root: %w", err)
	}
	if !info.IsDir() {
		// A plain module: a package of one.
		module, err := l.parseCached(ctx, root, name)
		if err != nil {
			return nil, err
		}
		return []*docspec.Module{module}, nil
	}

	files, err := ListPackageFiles(root, l.excludes)
	if err != nil {
		return nil, err
	}

	modules := make([]*docspec.Module, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		module, err := l.parseCached(ctx, file, submoduleName(name, root, file))
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// LoadAll discovers every module root on the search path and parses it,
// expanding package roots into their submodules.
func (l *Loader) LoadAll(ctx context.Context) ([]*docspec.Module, error) {
	roots, err := DiscoverModules(l.searchPath, l.excludes)
	if err != nil {
		return nil, err
	}

	var modules []*docspec.Module
	for _, root := range roots {
		if root.IsPackage {
			pkg, err := l.loadPackageDir(ctx, root.Name(), root.Path)
			if err != nil {
				return nil, err
			}
			modules = append(modules, pkg...)
			continue
		}
		module, err := l.parseCached(ctx, root.Path, root.Name())
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

func (l *Loader) loadPackageDir(ctx context.Context, name, root string) ([]*docspec.Module, error) {
	files, err := ListPackageFiles(root, l.excludes)
	if err != nil {
		return nil, err
	}

	modules := make([]*docspec.Module, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		module, err := l.parseCached(ctx, file, submoduleName(name, root, file))
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// parseCached parses a file, reusing the cached module when the content hash
// is unchanged.
func (l *Loader) parseCached(ctx context.Context, path, name string) (*docspec.Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	hash := computeHash(content)

	if entry, ok := l.cache.Get(path); ok && entry.hash == hash {
		return entry.module, nil
	}

	module, err := l.parser.ParseString(ctx, content, name, path)
	if err != nil {
		return nil, err
	}
	l.cache.Add(path, cacheEntry{hash: hash, module: module})
	return module, nil
}

// ListPackageFiles lists the .py files under a package directory, excluded
// paths removed, with each directory's __init__.py ordered before its
// siblings.
func ListPackageFiles(root string, excludes []string) ([]string, error) {
	if excludes == nil {
		excludes = DefaultExcludePatterns
	}
	matcher, err := NewExcludeMatcher(excludes)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matcher.Matches(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk package %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		di, dj := filepath.Dir(files[i]), filepath.Dir(files[j])
		if di != dj {
			return di < dj
		}
		bi, bj := filepath.Base(files[i]), filepath.Base(files[j])
		if (bi == "__init__.py") != (bj == "__init__.py") {
			return bi == "__init__.py"
		}
		return bi < bj
	})
	return files, nil
}

// submoduleName builds the dotted name of a file inside a package.
func submoduleName(pkgName, root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return pkgName
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	rel = strings.TrimSuffix(rel, "__init__")
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return pkgName
	}
	return pkgName + "." + strings.ReplaceAll(rel, "/", ".")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// computeHash returns the hex sha256 of content, used for change detection.
func computeHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

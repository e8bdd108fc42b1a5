package python

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludePatterns are the path patterns skipped during module
// discovery. Without these, a virtualenv adjacent to the package directory
// would drag every installed dependency into the result. The list is largely
// adapted from the common Python gitignore.
var DefaultExcludePatterns = []string{
	// Byte-compiled / optimized / DLL files
	"__pycache__/",
	// Distribution / packaging
	"/build/",
	"/develop-eggs/",
	"/dist/",
	"/downloads/",
	"/eggs/",
	"/.eggs/",
	"/lib/",
	"/lib64/",
	"/parts/",
	"/sdist/",
	"/var/",
	"/wheels/",
	"/pip-wheel-metadata/",
	"/share/python-wheels/",
	"/*.egg-info/",
	// Environments
	".env/",
	".venv/",
	"env/",
	"venv/",
	"ENV/",
	"env.bak/",
	"venv.bak/",
	// Editors
	".vscode/",
	"/docs/",
	"/test/",
	"/tests/",
}

// ExcludeMatcher matches relative paths against gitignore-style patterns.
//
// A pattern containing a "/" is anchored to the search root; a trailing "/"
// restricts it to directories (and everything under them); a "!" prefix
// negates it. Wildcards are doublestar globs, so "*.egg-info" and "**" terms
// work. The last matching pattern wins.
type ExcludeMatcher struct {
	rules []excludeRule
}

type excludeRule struct {
	globs  []string
	negate bool
}

// NewExcludeMatcher compiles patterns into a matcher. Invalid glob patterns
// return an error naming the pattern.
func NewExcludeMatcher(patterns []string) (*ExcludeMatcher, error) {
	m := &ExcludeMatcher{}

	for _, pattern := range patterns {
		p := pattern
		rule := excludeRule{}

		if strings.HasPrefix(p, "!") {
			rule.negate = true
			p = p[1:]
		} else if strings.HasPrefix(p, `\!`) {
			p = p[1:]
		}

		dirOnly := strings.HasSuffix(p, "/")
		anchored := strings.HasPrefix(p, "/") || strings.Contains(strings.TrimSuffix(p, "/"), "/")
		p = strings.Trim(p, "/")
		if p == "" {
			return nil, fmt.Errorf("exclude pattern has no terms: %q", pattern)
		}

		bases := []string{p}
		if !anchored {
			bases = append(bases, "**/"+p)
		}
		for _, base := range bases {
			// A directory pattern also excludes everything beneath it.
			rule.globs = append(rule.globs, base+"/**")
			if !dirOnly {
				rule.globs = append(rule.globs, base)
			}
		}

		for _, g := range rule.globs {
			if !doublestar.ValidatePattern(g) {
				return nil, fmt.Errorf("invalid exclude pattern: %q", pattern)
			}
		}
		m.rules = append(m.rules, rule)
	}

	return m, nil
}

// Matches reports whether the slash-separated relative path is excluded.
func (m *ExcludeMatcher) Matches(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	excluded := false

	for _, rule := range m.rules {
		for _, g := range rule.globs {
			if ok, _ := doublestar.Match(g, relPath); ok {
				excluded = !rule.negate
				break
			}
		}
	}
	return excluded
}

// FoundModule is a module or package root located under a search directory.
type FoundModule struct {
	// Path is the absolute path to the module file or package directory.
	Path string

	// RelPath is the path relative to the search directory.
	RelPath string

	// SearchDir is the directory that was searched, as given.
	SearchDir string

	// IsPackage is true when the root is a package directory rather than a
	// single module file.
	IsPackage bool
}

// Name returns the dotted import name of the module.
func (f FoundModule) Name() string {
	rel := strings.TrimSuffix(filepath.ToSlash(f.RelPath), ".py")
	return strings.ReplaceAll(rel, "/", ".")
}

// namespaceInitBodies are the exact __init__.py contents that declare a
// pkgutil- or pkg_resources-style namespace. Such a file does not make its
// directory a package root.
var namespaceInitBodies = []string{
	"__path__ = __import__('pkgutil').extend_path(__path__, __name__)",
	"__import__('pkg_resources').declare_namespace(__name__)",
	"try:\n" +
		"    __import__('pkg_resources').declare_namespace(__name__)\n" +
		"except ImportError:\n" +
		"    __path__ = __import__('pkgutil').extend_path(__path__, __name__)",
}

func isNamespaceInit(path string) bool {
	if filepath.Base(path) != "__init__.py" {
		return false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	body := strings.TrimSpace(string(content))
	for _, known := range namespaceInitBodies {
		if body == known {
			return true
		}
	}
	return false
}

// FindModuleRoots finds the module files and package directories under
// searchDir that should be treated as importable roots, honoring PEP 420
// implicit namespace packages: with a layout like ns/pkg_a/__init__.py and no
// ns/__init__.py, the root is ns/pkg_a, not ns.
//
// A nil excludes falls back to DefaultExcludePatterns. A missing searchDir
// yields no results; a searchDir that is not a directory is an error.
func FindModuleRoots(searchDir string, excludes []string) ([]FoundModule, error) {
	if excludes == nil {
		excludes = DefaultExcludePatterns
	}
	matcher, err := NewExcludeMatcher(excludes)
	if err != nil {
		return nil, err
	}

	absDir, err := filepath.Abs(searchDir)
	if err != nil {
		return nil, fmt.Errorf("resolve search dir: %w", err)
	}
	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat search dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("search dir is not a directory: %s", searchDir)
	}

	var candidates []FoundModule
	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}

		relPath, err := filepath.Rel(absDir, path)
		if err != nil {
			return err
		}

		// A bare top-level __init__.py has no name to import it as.
		if relPath == "__init__.py" {
			return nil
		}
		// Directories with dots in their names cannot be import segments.
		for _, part := range strings.Split(filepath.Dir(relPath), string(filepath.Separator)) {
			if strings.Contains(part, ".") && part != "." {
				return nil
			}
		}
		if isNamespaceInit(path) {
			return nil
		}
		if matcher.Matches(relPath) {
			return nil
		}

		found := FoundModule{Path: path, RelPath: relPath, SearchDir: searchDir}
		if filepath.Base(path) == "__init__.py" {
			found.Path = filepath.Dir(path)
			found.RelPath = filepath.Dir(relPath)
			found.IsPackage = true
		}
		candidates = append(candidates, found)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", searchDir, err)
	}

	return reduceRoots(candidates), nil
}

// reduceRoots drops candidates that are descendants of another candidate, so
// only the shallowest roots remain.
func reduceRoots(candidates []FoundModule) []FoundModule {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].RelPath < candidates[j].RelPath
	})

	var roots []FoundModule
	for _, c := range candidates {
		descendant := false
		for _, root := range roots {
			if root.IsPackage && strings.HasPrefix(c.Path, root.Path+string(filepath.Separator)) {
				descendant = true
				break
			}
		}
		if !descendant {
			roots = append(roots, c)
		}
	}
	return roots
}

// DiscoverModules finds module roots across a search path, in order.
func DiscoverModules(searchPath []string, excludes []string) ([]FoundModule, error) {
	var all []FoundModule
	seen := make(map[string]bool)

	for _, dir := range searchPath {
		roots, err := FindModuleRoots(dir, excludes)
		if err != nil {
			return nil, err
		}
		for _, root := range roots {
			if !seen[root.Path] {
				seen[root.Path] = true
				all = append(all, root)
			}
		}
	}
	return all, nil
}

// pyproject mirrors the subset of pyproject.toml that affects discovery.
type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name     string `toml:"name"`
			Packages []struct {
				Include string `toml:"include"`
				From    string `toml:"from"`
			} `toml:"packages"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// DefaultSearchPath determines where to look for modules under a project
// directory. When a pyproject.toml declares packages sourced from a
// subdirectory (the common src/ layout), or a src/ directory exists, that
// subdirectory is searched; otherwise the project directory itself is.
func DefaultSearchPath(projectDir string) []string {
	pyprojectPath := filepath.Join(projectDir, "pyproject.toml")
	if _, err := os.Stat(pyprojectPath); err == nil {
		var pp pyproject
		if _, err := toml.DecodeFile(pyprojectPath, &pp); err == nil {
			dirs := map[string]bool{}
			for _, pkg := range pp.Tool.Poetry.Packages {
				if pkg.From != "" {
					dirs[filepath.Join(projectDir, pkg.From)] = true
				}
			}
			if len(dirs) > 0 {
				var path []string
				for dir := range dirs {
					path = append(path, dir)
				}
				sort.Strings(path)
				return path
			}
		}
	}

	if info, err := os.Stat(filepath.Join(projectDir, "src")); err == nil && info.IsDir() {
		return []string{filepath.Join(projectDir, "src")}
	}
	return []string{projectDir}
}

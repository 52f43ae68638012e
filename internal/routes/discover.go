package routes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
)

var (
	// ErrUnboundHandler is returned when an operation names a handler the
	// registry does not know and no fallback is set.
	ErrUnboundHandler = errors.New("unbound handler")
	// ErrUnboundMiddleware is returned when a handler chain names an
	// unregistered middleware.
	ErrUnboundMiddleware = errors.New("unbound middleware")
)

// moduleExtensions are the file extensions recognised as route modules.
var moduleExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Discover loads every route module under dir. A file's path relative to
// dir, minus its extension, is its path template: widgets/{id}.yaml serves
// /widgets/{id} and an index file serves its directory. Routes are ordered
// so that static segments come before templated ones.
func Discover(dir string, registry *Registry) ([]Route, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("routes dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("routes dir %s: not a directory", dir)
	}

	var routes []Route
	seen := make(map[string]string)
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !moduleExtensions[filepath.Ext(p)] {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		template := TemplateFor(rel)
		if prev, dup := seen[template]; dup {
			return fmt.Errorf("route %s is declared by both %s and %s", template, prev, p)
		}
		seen[template] = p

		mod, err := LoadModule(p, registry)
		if err != nil {
			return err
		}
		routes = append(routes, Route{Template: template, Module: mod, Source: p})
		return nil
	})
	if err != nil {
		return nil, err
	}

	Sort(routes)
	return routes, nil
}

// TemplateFor maps a module file path, relative to the routes directory, to
// the path template it serves.
func TemplateFor(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	if path.Base(rel) == "index" {
		rel = path.Dir(rel)
		if rel == "." {
			rel = ""
		}
	}
	return "/" + rel
}

// LoadModule decodes one route module file and binds it against registry.
func LoadModule(file string, registry *Registry) (*Module, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read route module: %w", err)
	}
	var mf moduleFile
	if err := apidoc.DecodeYAML(data, &mf); err != nil {
		return nil, fmt.Errorf("parse route module %s: %w", file, err)
	}
	mod, err := mf.bind(registry)
	if err != nil {
		return nil, fmt.Errorf("route module %s: %w", file, err)
	}
	return mod, nil
}

// Sort orders routes segment by segment, static segments before templated
// ones and lexically otherwise, so a router that matches in registration
// order prefers /widgets/mine over /widgets/{id}.
func Sort(routes []Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return lessTemplate(routes[i].Template, routes[j].Template)
	})
}

func lessTemplate(a, b string) bool {
	as := strings.Split(strings.Trim(a, "/"), "/")
	bs := strings.Split(strings.Trim(b, "/"), "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		ap, bp := isTemplated(as[i]), isTemplated(bs[i])
		if ap != bp {
			return bp
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}

func isTemplated(segment string) bool {
	return strings.Contains(segment, "{")
}

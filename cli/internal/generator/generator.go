package generator

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

// Kind selects the scaffold shape and the filename convention of the built
// artifact.
type Kind string

const (
	KindPlugin          Kind = "plugin"
	KindMiddleware      Kind = "middleware"
	KindRouteMiddleware Kind = "route-middleware"
)

// Result describes what was generated.
type Result struct {
	SourcePath   string
	BuildCommand string
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Generate writes a plugin source file for the given kind and name into dir.
func Generate(kind Kind, name, dir string) (*Result, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid name %q: must start with a letter and contain only lowercase letters, digits, '-' or '_'", name)
	}

	var tmplSrc, artifact string
	switch kind {
	case KindPlugin:
		tmplSrc = setupPluginTemplate
		artifact = name + ".so"
	case KindMiddleware:
		tmplSrc = middlewareTemplate
		// Global middleware belongs in the middleware/ directory.
		artifact = "middleware/" + name + ".so"
	case KindRouteMiddleware:
		tmplSrc = middlewareTemplate
		// The .md marker in the built filename scopes the hook to /<name>.
		artifact = name + ".md.so"
	default:
		return nil, fmt.Errorf("unknown kind %q (want plugin, middleware, or route-middleware)", kind)
	}

	tmpl, err := template.New(string(kind)).Parse(tmplSrc)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Name string }{Name: name}); err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}

	sourcePath := filepath.Join(dir, strings.ReplaceAll(name, "-", "_")+".go")
	if _, err := os.Stat(sourcePath); err == nil {
		return nil, fmt.Errorf("refusing to overwrite %s", sourcePath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(sourcePath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", sourcePath, err)
	}

	return &Result{
		SourcePath:   sourcePath,
		BuildCommand: fmt.Sprintf("go build -buildmode=plugin -o plugins/%s %s", artifact, sourcePath),
	}, nil
}

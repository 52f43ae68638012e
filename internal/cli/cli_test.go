package cli

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tjfontaine/oapi-pipeline/internal/routes"
)

const testDoc = `swagger: "2.0"
info:
  title: Widgets
  version: "1.0"
basePath: /v1
paths: {}
`

const testModule = `get:
  doc:
    operationId: getWidget
    parameters:
      - {name: id, in: path, required: true, type: integer}
    responses:
      "200": {description: ok}
`

func writeAPI(t *testing.T) (doc, routesDir string) {
	t.Helper()
	dir := t.TempDir()
	doc = filepath.Join(dir, "api.yaml")
	routesDir = filepath.Join(dir, "routes")
	if err := os.MkdirAll(filepath.Join(routesDir, "widgets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(doc, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(routesDir, "widgets", "{id}.yaml"), []byte(testModule), 0o644); err != nil {
		t.Fatal(err)
	}
	return doc, routesDir
}

func run(t *testing.T, registry *routes.Registry, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	root := NewRootCmd(registry)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestUnknownFlag_ShowsHelpAndUsageError(t *testing.T) {
	_, err := run(t, nil, "serve", "--unknown-flag")
	if err == nil {
		t.Fatalf("expected error for unknown flag")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "unknown flag") || !strings.Contains(err.Error(), "Usage:") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestServe_RequiresDocAndRoutes(t *testing.T) {
	_, err := run(t, nil, "serve")
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "api.doc") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestValidate(t *testing.T) {
	doc, _ := writeAPI(t)

	out, err := run(t, nil, "validate", doc)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Errorf("unexpected output: %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("swagger: \"2.0\"\npaths: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, nil, "validate", bad)
	if err == nil {
		t.Fatalf("expected an error for an invalid document, output: %q", out)
	}
	if !strings.Contains(out, "error") {
		t.Errorf("expected issues in output, got %q", out)
	}
}

func TestRoutes(t *testing.T) {
	doc, routesDir := writeAPI(t)
	registry := routes.NewRegistry()
	registry.RegisterHandlerFunc("getWidget", func(w http.ResponseWriter, r *http.Request) {})

	out, err := run(t, registry, "routes", "--doc", doc, "--routes", routesDir)
	if err != nil {
		t.Fatalf("routes error = %v", err)
	}
	for _, want := range []string{
		"METHOD",
		"/v1/widgets/:id",
		"coercion,request-validation,response-validation",
		"/v1/api-docs",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRoutes_UnboundHandler(t *testing.T) {
	doc, routesDir := writeAPI(t)

	_, err := run(t, nil, "routes", "--doc", doc, "--routes", routesDir)
	if err == nil || !strings.Contains(err.Error(), "getWidget") {
		t.Fatalf("expected an unbound handler error, got %v", err)
	}
}

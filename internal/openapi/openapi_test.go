package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/docvalidate"
	"github.com/tjfontaine/oapi-pipeline/internal/metrics"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
	"github.com/tjfontaine/oapi-pipeline/internal/router"
	"github.com/tjfontaine/oapi-pipeline/internal/routes"
)

type registration struct {
	method  string
	pattern string
	p       *pipeline.Pipeline
}

type recordingRouter struct {
	regs []registration
}

func (r *recordingRouter) Register(method, pattern string, p *pipeline.Pipeline) {
	r.regs = append(r.regs, registration{method: method, pattern: pattern, p: p})
}

func (r *recordingRouter) find(method, pattern string) *pipeline.Pipeline {
	for _, reg := range r.regs {
		if reg.method == method && reg.pattern == pattern {
			return reg.p
		}
	}
	return nil
}

const widgetDoc = `
swagger: "2.0"
info:
  title: Widgets
  version: "1.0"
basePath: /v1
tags:
  - name: widgets
paths: {}
`

const widgetModule = `
get:
  doc:
    operationId: getWidget
    tags: [widgets, gadgets]
    parameters:
      - name: id
        in: path
        required: true
        type: integer
    responses:
      "200":
        description: ok
`

func writeRoutes(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func parseDoc(t *testing.T, raw string) *apidoc.Document {
	t.Helper()
	doc, err := apidoc.Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok": true}`))
}

func header(name, value string) pipeline.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add(name, value)
			next.ServeHTTP(w, r)
		})
	}
}

func testRegistry() *routes.Registry {
	reg := routes.NewRegistry()
	reg.RegisterHandlerFunc("getWidget", okHandler)
	reg.RegisterHandlerFunc("listWidgets", okHandler)
	reg.RegisterMiddleware("audit", header("X-Audit", "doc"))
	return reg
}

var noValidation = WithValidateAPIDoc(false)

func TestInitialize_WidgetExample(t *testing.T) {
	dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": widgetModule})
	app := &recordingRouter{}

	api, err := Initialize(context.Background(), app, parseDoc(t, widgetDoc), dir,
		WithRegistry(testRegistry()), noValidation)
	require.NoError(t, err)

	p := app.find(http.MethodGet, "/v1/widgets/:id")
	require.NotNil(t, p)
	assert.Equal(t, []pipeline.StageKind{
		pipeline.StageCoercion,
		pipeline.StageRequestValidation,
		pipeline.StageResponseValidation,
	}, p.Kinds())
	assert.NotNil(t, p.Handler)

	require.Len(t, api.Routes, 1)
	assert.Equal(t, Route{
		Method:   http.MethodGet,
		Path:     "/v1/widgets/:id",
		Template: "/widgets/{id}",
		Stages:   p.Kinds(),
	}, api.Routes[0])
}

func TestInitialize_DisableResponseValidation(t *testing.T) {
	module := widgetModule + "    x-oapi-pipeline-disable-response-validation-middleware: true\n"
	dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": module})
	app := &recordingRouter{}

	_, err := Initialize(context.Background(), app, parseDoc(t, widgetDoc), dir,
		WithRegistry(testRegistry()), noValidation)
	require.NoError(t, err)

	p := app.find(http.MethodGet, "/v1/widgets/:id")
	require.NotNil(t, p)
	assert.False(t, p.Has(pipeline.StageResponseValidation))
	assert.True(t, p.Has(pipeline.StageRequestValidation))
}

func TestInitialize_FlagsAtEveryLevel(t *testing.T) {
	const flag = pipeline.FlagDisableCoercionMiddleware
	tests := []struct {
		name   string
		doc    string
		module string
	}{
		{
			name:   "document",
			doc:    widgetDoc + flag + ": true\n",
			module: widgetModule,
		},
		{
			name: "path item",
			doc: `
swagger: "2.0"
info: {title: Widgets, version: "1.0"}
basePath: /v1
paths:
  /widgets/{id}:
    ` + flag + `: true
`,
			module: widgetModule,
		},
		{
			name:   "route module",
			doc:    widgetDoc,
			module: flag + ": true\n" + widgetModule,
		},
		{
			name:   "operation",
			doc:    widgetDoc,
			module: widgetModule + "    " + flag + ": true\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": tt.module})
			app := &recordingRouter{}

			_, err := Initialize(context.Background(), app, parseDoc(t, tt.doc), dir,
				WithRegistry(testRegistry()), noValidation)
			require.NoError(t, err)

			p := app.find(http.MethodGet, "/v1/widgets/:id")
			require.NotNil(t, p)
			assert.Equal(t, []pipeline.StageKind{
				pipeline.StageRequestValidation,
				pipeline.StageResponseValidation,
			}, p.Kinds())
		})
	}
}

func TestInitialize_DisableAllMiddleware(t *testing.T) {
	dir := writeRoutes(t, map[string]string{
		"widgets/{id}.yaml": pipeline.FlagDisableMiddleware + ": true\n" + widgetModule,
	})
	app := &recordingRouter{}

	api, err := Initialize(context.Background(), app, parseDoc(t, widgetDoc), dir,
		WithRegistry(testRegistry()), noValidation)
	require.NoError(t, err)

	p := app.find(http.MethodGet, "/v1/widgets/:id")
	require.NotNil(t, p)
	assert.Empty(t, p.Kinds())
	assert.NotNil(t, p.Handler)

	item := api.Doc.PathItem("/widgets/{id}")
	require.NotNil(t, item)
	assert.NotContains(t, item.Operations, "get", "disabled operations stay out of the working document")

	var names []string
	for _, tag := range api.Doc.Tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"gadgets", "widgets"}, names, "tags are still collected")
}

func TestInitialize_WorkingDocument(t *testing.T) {
	dir := writeRoutes(t, map[string]string{
		"widgets/{id}.yaml": "parameters:\n  - {name: id, in: path, required: true, type: integer}\n" +
			"get:\n  doc:\n    operationId: getWidget\n    tags: [zeta, alpha, zeta]\n    responses:\n      \"200\": {description: ok}\n",
		"widgets.yaml": "get:\n  doc:\n    operationId: listWidgets\n    tags: [middle]\n",
	})
	original := parseDoc(t, widgetDoc)
	before, err := json.Marshal(original)
	require.NoError(t, err)

	api, err := Initialize(context.Background(), &recordingRouter{}, original, dir,
		WithRegistry(testRegistry()), noValidation)
	require.NoError(t, err)

	after, err := json.Marshal(original)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "original document must not change")

	var names []string
	for _, tag := range api.Doc.Tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"alpha", "middle", "widgets", "zeta"}, names)

	item := api.Doc.PathItem("/widgets/{id}")
	require.NotNil(t, item)
	require.Len(t, item.Parameters, 1)
	assert.Equal(t, "id", item.Parameters[0].Name)
	require.Contains(t, item.Operations, "get")
	assert.Equal(t, "getWidget", item.Operations["get"].OperationID)

	list := api.Doc.PathItem("/widgets")
	require.NotNil(t, list)
	assert.NotNil(t, list.Parameters, "path items without module parameters get an empty list")
	assert.Empty(t, list.Parameters)
}

func TestInitialize_ParameterMerge(t *testing.T) {
	dir := writeRoutes(t, map[string]string{
		"widgets/{id}.yaml": `
parameters:
  - {name: id, in: path, required: true, type: string}
  - {name: verbose, in: query, type: boolean}
get:
  doc:
    operationId: getWidget
    parameters:
      - {name: id, in: path, required: true, type: integer}
`,
	})
	var captured []apidoc.Parameter
	factory := capturingFactory{params: &captured}

	_, err := Initialize(context.Background(), &recordingRouter{}, parseDoc(t, widgetDoc), dir,
		WithRegistry(testRegistry()), WithStageFactory(factory), noValidation)
	require.NoError(t, err)

	require.Len(t, captured, 2)
	assert.Equal(t, "verbose", captured[0].Name)
	assert.Equal(t, "id", captured[1].Name)
	assert.Equal(t, "integer", captured[1].Type)
}

type capturingFactory struct {
	params *[]apidoc.Parameter
}

func passthrough(next http.Handler) http.Handler { return next }

func (f capturingFactory) Defaults(pipeline.DefaultsArgs) pipeline.Middleware { return passthrough }
func (f capturingFactory) Coercion(args pipeline.CoercionArgs) pipeline.Middleware {
	*f.params = args.Parameters
	return passthrough
}
func (f capturingFactory) RequestValidation(pipeline.RequestValidationArgs) pipeline.Middleware {
	return passthrough
}
func (f capturingFactory) ResponseValidation(pipeline.ResponseValidationArgs) pipeline.Middleware {
	return passthrough
}

func TestInitialize_AdditionalMiddleware(t *testing.T) {
	doc := `
swagger: "2.0"
info: {title: Widgets, version: "1.0"}
basePath: /v1
x-oapi-pipeline-additional-middleware: [audit, missing]
paths:
  /gadgets:
    x-oapi-pipeline-inherit-additional-middleware: false
`
	dir := writeRoutes(t, map[string]string{
		"widgets.yaml": "get: {handler: listWidgets}\n",
		"gadgets.yaml": "get: {handler: listWidgets}\n",
	})
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	mux := chi.NewRouter()

	_, err := Initialize(context.Background(), router.NewChi(mux, logger), parseDoc(t, doc), dir,
		WithRegistry(testRegistry()), WithLogger(logger), noValidation)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/widgets", nil))
	assert.Equal(t, []string{"doc"}, rec.Header().Values("X-Audit"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/gadgets", nil))
	assert.Empty(t, rec.Header().Values("X-Audit"), "path item stops inheritance from the document")

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "entry=missing")
}

func TestInitialize_RouteModuleInCode(t *testing.T) {
	dir := writeRoutes(t, nil)
	mod := &routes.Module{
		Extensions: apidoc.Extensions{
			pipeline.FlagAdditionalMiddleware: []pipeline.Middleware{header("X-Chain", "module")},
		},
		Methods: map[string]*routes.Method{
			"post": {
				Doc: &apidoc.Operation{
					OperationID: "createWidget",
					Extensions: apidoc.Extensions{
						pipeline.FlagAdditionalMiddleware: []pipeline.Middleware{header("X-Chain", "never")},
					},
				},
				Chain:   []pipeline.Middleware{header("X-Chain", "chain")},
				Handler: http.HandlerFunc(okHandler),
			},
		},
	}
	mux := chi.NewRouter()

	api, err := Initialize(context.Background(), router.NewChi(mux, nil), parseDoc(t, widgetDoc), dir,
		WithRouteModule("/widgets", mod), noValidation)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/widgets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"module", "chain"}, rec.Header().Values("X-Chain"))

	op := api.Doc.PathItem("/widgets").Operations["post"]
	require.NotNil(t, op)
	v, ok := op.Extension(pipeline.FlagAdditionalMiddleware)
	require.True(t, ok)
	list, _ := apidoc.AsArray(v)
	assert.Empty(t, list, "function values are not copied into the working document")

	_, err = json.Marshal(api.Doc)
	require.NoError(t, err)
}

func TestInitialize_EndToEnd(t *testing.T) {
	dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": widgetModule})
	mux := chi.NewRouter()
	recorder := metrics.New()

	api, err := Initialize(context.Background(), router.NewChi(mux, nil), parseDoc(t, widgetDoc), dir,
		WithRegistry(testRegistry()), WithMetrics(recorder), noValidation)
	require.NoError(t, err)
	assert.Equal(t, "/v1/api-docs", api.DocsPath)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/widgets/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/widgets/seven", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/api-docs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var served map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &served))
	assert.Contains(t, served["paths"], "/widgets/{id}")

	metricsRec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), `oapi_pipeline_validation_rejections_total{method="get",path="/widgets/{id}",stage="request-validation"} 1`)
}

func TestInitialize_DocsEndpointOptions(t *testing.T) {
	dir := writeRoutes(t, nil)

	app := &recordingRouter{}
	api, err := Initialize(context.Background(), app, parseDoc(t, widgetDoc), dir,
		WithDocsPath("/swagger.json"), noValidation)
	require.NoError(t, err)
	assert.Equal(t, "/v1/swagger.json", api.DocsPath)
	assert.NotNil(t, app.find(http.MethodGet, "/v1/swagger.json"))

	app = &recordingRouter{}
	api, err = Initialize(context.Background(), app, parseDoc(t, widgetDoc), dir,
		WithExposeAPIDocs(false), noValidation)
	require.NoError(t, err)
	assert.Empty(t, api.DocsPath)
	assert.Empty(t, app.regs)
}

func TestInitialize_ConfigErrors(t *testing.T) {
	dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": widgetModule})
	file := filepath.Join(dir, "widgets", "{id}.yaml")
	doc := parseDoc(t, widgetDoc)

	tests := []struct {
		name string
		app  Router
		doc  *apidoc.Document
		dir  string
		opts []Option
	}{
		{name: "nil router", doc: doc, dir: dir},
		{name: "nil doc", app: &recordingRouter{}, dir: dir},
		{name: "empty routes", app: &recordingRouter{}, doc: doc},
		{name: "missing routes", app: &recordingRouter{}, doc: doc, dir: filepath.Join(dir, "nope")},
		{name: "routes is a file", app: &recordingRouter{}, doc: doc, dir: file},
		{name: "docs path", app: &recordingRouter{}, doc: doc, dir: dir, opts: []Option{WithDocsPath("api-docs")}},
		{name: "nil transformer", app: &recordingRouter{}, doc: doc, dir: dir, opts: []Option{WithErrorTransformer(nil)}},
		{name: "unbound handler", app: &recordingRouter{}, doc: doc, dir: dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{noValidation}, tt.opts...)
			_, err := Initialize(context.Background(), tt.app, tt.doc, tt.dir, opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
			assert.True(t, IsConfigError(err))
			if rr, ok := tt.app.(*recordingRouter); ok {
				assert.Empty(t, rr.regs)
			}
		})
	}
}

func TestInitialize_PreValidationFailure(t *testing.T) {
	dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": widgetModule})
	app := &recordingRouter{}

	_, err := Initialize(context.Background(), app, parseDoc(t, `{"swagger": "2.0", "paths": {}}`), dir,
		WithRegistry(testRegistry()), WithLogger(slog.New(slog.DiscardHandler)))

	var docErr *DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, PhaseBeforeAssembly, docErr.Phase)
	assert.NotEmpty(t, docErr.Issues)
	assert.Empty(t, app.regs)
}

func TestInitialize_PostValidationFailure(t *testing.T) {
	dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": widgetModule})
	calls := 0
	v := docvalidate.Func(func(ctx context.Context, doc *apidoc.Document) ([]docvalidate.Issue, error) {
		calls++
		if doc.PathItem("/widgets/{id}") != nil {
			return []docvalidate.Issue{{Path: "paths", Message: "rejected", Severity: "error"}}, nil
		}
		return nil, nil
	})

	_, err := Initialize(context.Background(), &recordingRouter{}, parseDoc(t, widgetDoc), dir,
		WithRegistry(testRegistry()), WithDocValidator(v), WithLogger(slog.New(slog.DiscardHandler)))

	var docErr *DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, PhaseAfterAssembly, docErr.Phase)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "paths: rejected")
}

func TestInitialize_ValidDocument(t *testing.T) {
	dir := writeRoutes(t, map[string]string{"widgets/{id}.yaml": widgetModule})

	api, err := Initialize(context.Background(), &recordingRouter{}, parseDoc(t, widgetDoc), dir,
		WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.Len(t, api.Routes, 1)
}

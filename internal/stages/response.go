package stages

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
	"github.com/tjfontaine/oapi-pipeline/internal/server"
)

// ResponseValidator checks a response body against the schema declared for
// its status code.
type ResponseValidator struct {
	route       pipeline.Route
	responses   map[string]*compiledSchema
	declared    map[string]bool
	transformer pipeline.ErrorTransformer
	formats     pipeline.CustomFormats
	observer    Observer
}

type responseValidatorKey struct{}

// ResponseValidation attaches a ResponseValidator to the request context.
// Handlers opt in by calling ValidateResponse before writing their body.
func ResponseValidation(logger *slog.Logger, observer Observer, args pipeline.ResponseValidationArgs) pipeline.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	rv := &ResponseValidator{
		route:       args.Route,
		responses:   make(map[string]*compiledSchema),
		declared:    make(map[string]bool),
		transformer: args.ErrorTransformer,
		formats:     args.CustomFormats,
		observer:    observer,
	}
	for status, raw := range args.Responses {
		rv.declared[status] = true
		response, _ := raw.(map[string]any)
		schema, ok := response["schema"].(map[string]any)
		if !ok {
			continue
		}
		compiled, err := compileSchema(schema, args.Definitions)
		if err != nil {
			logger.Warn("response schema not usable, skipping schema checks",
				"method", args.Route.Method,
				"path", args.Route.Template,
				"status", status,
				"error", err)
			continue
		}
		rv.responses[status] = compiled
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), responseValidatorKey{}, rv)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResponseValidatorFromContext returns the validator the response
// validation stage attached, if any.
func ResponseValidatorFromContext(ctx context.Context) (*ResponseValidator, bool) {
	rv, ok := ctx.Value(responseValidatorKey{}).(*ResponseValidator)
	return rv, ok
}

// ValidateResponse validates body against the response declared for status.
// It returns nil when the operation has no response validation stage.
func ValidateResponse(ctx context.Context, status int, body any) error {
	rv, ok := ResponseValidatorFromContext(ctx)
	if !ok {
		return nil
	}
	err := rv.Validate(status, body)
	if err != nil {
		server.AddError(ctx, err)
	}
	return err
}

// Validate checks body against the exact status code first and the default
// response second. It returns a *ValidationError on failure.
func (rv *ResponseValidator) Validate(status int, body any) error {
	key := strconv.Itoa(status)
	if !rv.declared[key] {
		key = "default"
	}
	if !rv.declared[key] {
		return rv.fail([]pipeline.ValidationIssue{{
			Path:      "response",
			ErrorCode: "default" + responseValidationSuffix,
			Message:   "An unknown status code was used and no default was provided.",
		}}, []error{nil})
	}

	schema := rv.responses[key]
	if schema == nil {
		return nil
	}
	value := normalize(body)
	var issues []pipeline.ValidationIssue
	var causes []error
	for _, se := range schema.visit(value) {
		issues = append(issues, pipeline.ValidationIssue{
			Path:      responsePath(schemaErrorPath(se)),
			ErrorCode: schemaErrorField(se) + responseValidationSuffix,
			Message:   "The response was not valid.",
		})
		causes = append(causes, se)
	}
	for _, fi := range checkFormats(schema.source, value, rv.formats, nil) {
		issues = append(issues, pipeline.ValidationIssue{
			Path:      responsePath(fi.path),
			ErrorCode: "format" + responseValidationSuffix,
			Message:   "The response was not valid.",
		})
		causes = append(causes, fi.err)
	}
	if len(issues) == 0 {
		return nil
	}
	return rv.fail(issues, causes)
}

func (rv *ResponseValidator) fail(issues []pipeline.ValidationIssue, causes []error) error {
	if rv.observer != nil {
		rv.observer.Rejected(rv.route, pipeline.StageResponseValidation, issues)
	}
	return &ValidationError{
		Status: http.StatusInternalServerError,
		Errors: transform(issues, causes, rv.transformer),
		Issues: issues,
	}
}

func responsePath(inner string) string {
	if inner == "" {
		return "response"
	}
	return "response/" + inner
}

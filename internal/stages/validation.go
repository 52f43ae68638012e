package stages

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
	"github.com/tjfontaine/oapi-pipeline/internal/server"
)

const (
	requestValidationSuffix  = ".openapi.requestValidation"
	responseValidationSuffix = ".openapi.responseValidation"
)

// ValidationError is the error a validation stage reports. It doubles as
// the JSON body written for a rejected request.
type ValidationError struct {
	Status int   `json:"status"`
	Errors []any `json:"errors"`

	Issues []pipeline.ValidationIssue `json:"-"`
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("validation failed with status %d", e.Status)
	}
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Path + ": " + issue.Message
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Observer is told about every request or response a stage rejects.
type Observer interface {
	Rejected(route pipeline.Route, stage pipeline.StageKind, issues []pipeline.ValidationIssue)
}

type paramValidator struct {
	param  apidoc.Parameter
	schema *compiledSchema
}

// RequestValidation rejects requests whose parameters do not satisfy the
// operation's parameter declarations. Rejected requests get a 400 with a
// JSON body listing every issue.
func RequestValidation(logger *slog.Logger, observer Observer, args pipeline.RequestValidationArgs) pipeline.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	params := args.Parameters
	validators := make([]paramValidator, 0, len(params))
	for _, p := range params {
		raw := p.Schema
		if p.In != apidoc.InBody {
			raw = parameterSchema(p)
		}
		v := paramValidator{param: p}
		if raw != nil {
			compiled, err := compileSchema(raw, args.Definitions)
			if err != nil {
				logger.Warn("parameter schema not usable, skipping schema checks",
					"method", args.Route.Method,
					"path", args.Route.Template,
					"parameter", p.Name,
					"error", err)
			} else {
				v.schema = compiled
			}
		}
		validators = append(validators, v)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, r, err := ensureValues(r, params)
			if err != nil {
				rejectUnreadable(w, err)
				return
			}

			var issues []pipeline.ValidationIssue
			var causes []error
			for _, v := range validators {
				vi, vc := v.validate(values, args.CustomFormats)
				issues = append(issues, vi...)
				causes = append(causes, vc...)
			}
			if len(issues) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if observer != nil {
				observer.Rejected(args.Route, pipeline.StageRequestValidation, issues)
			}
			server.AddLogField(r.Context(), "validation_issues", fmt.Sprint(len(issues)))
			writeValidationError(w, &ValidationError{
				Status: http.StatusBadRequest,
				Errors: transform(issues, causes, args.ErrorTransformer),
				Issues: issues,
			})
		})
	}
}

func (v paramValidator) validate(values *Values, formats pipeline.CustomFormats) ([]pipeline.ValidationIssue, []error) {
	p := v.param
	value, ok := values.Get(p.In, p.Name)
	if !ok {
		if p.Required {
			return []pipeline.ValidationIssue{{
				Path:      p.Name,
				ErrorCode: "required" + requestValidationSuffix,
				Message:   fmt.Sprintf("instance requires property %q", p.Name),
				Location:  p.In,
			}}, []error{nil}
		}
		return nil, nil
	}
	if v.schema == nil {
		return nil, nil
	}

	value = normalize(value)
	var issues []pipeline.ValidationIssue
	var causes []error
	for _, se := range v.schema.visit(value) {
		issues = append(issues, pipeline.ValidationIssue{
			Path:      issuePath(p, schemaErrorPath(se)),
			ErrorCode: schemaErrorField(se) + requestValidationSuffix,
			Message:   se.Reason,
			Location:  p.In,
		})
		causes = append(causes, se)
	}
	for _, fi := range checkFormats(v.schema.source, value, formats, nil) {
		issues = append(issues, pipeline.ValidationIssue{
			Path:      issuePath(p, fi.path),
			ErrorCode: "format" + requestValidationSuffix,
			Message:   fmt.Sprintf("must match format %q", fi.format),
			Location:  p.In,
		})
		causes = append(causes, fi.err)
	}
	return issues, causes
}

// issuePath locates an issue: body issues by their position inside the
// body, everything else by parameter name.
func issuePath(p apidoc.Parameter, inner string) string {
	if p.In == apidoc.InBody && inner != "" {
		return inner
	}
	if inner == "" {
		return p.Name
	}
	return p.Name + "/" + strings.TrimPrefix(inner, "/")
}

func transform(issues []pipeline.ValidationIssue, causes []error, transformer pipeline.ErrorTransformer) []any {
	out := make([]any, len(issues))
	for i, issue := range issues {
		if transformer != nil {
			out[i] = transformer(issue, causes[i])
			continue
		}
		out[i] = issue
	}
	return out
}

func writeValidationError(w http.ResponseWriter, verr *ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(verr.Status)
	_ = json.NewEncoder(w).Encode(verr)
}

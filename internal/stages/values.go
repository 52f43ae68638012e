package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// maxBodyBytes bounds how much of a JSON body the stages will buffer.
const maxBodyBytes = 10 << 20

// Values holds the request parameters as the stages see them: raw strings
// after extraction, typed values after coercion, defaults filled in.
type Values struct {
	Path     map[string]any
	Query    map[string]any
	Header   map[string]any
	FormData map[string]any
	Body     any
	HasBody  bool
}

type valuesKey struct{}

// FromContext returns the request-scoped parameter values, if a stage has
// extracted them.
func FromContext(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(valuesKey{}).(*Values)
	return v, ok
}

// Param returns one parameter value from the request context.
func Param(ctx context.Context, in, name string) (any, bool) {
	v, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return v.Get(in, name)
}

func (v *Values) location(in string) map[string]any {
	switch in {
	case apidoc.InPath:
		return v.Path
	case apidoc.InQuery:
		return v.Query
	case apidoc.InHeader:
		return v.Header
	case apidoc.InFormData:
		return v.FormData
	}
	return nil
}

// Get returns the value of the named parameter. Body parameters are looked
// up by location only.
func (v *Values) Get(in, name string) (any, bool) {
	if in == apidoc.InBody {
		return v.Body, v.HasBody
	}
	m := v.location(in)
	if m == nil {
		return nil, false
	}
	value, ok := m[name]
	return value, ok
}

// Set stores the value of the named parameter.
func (v *Values) Set(in, name string, value any) {
	if in == apidoc.InBody {
		v.Body, v.HasBody = value, true
		return
	}
	if m := v.location(in); m != nil {
		m[name] = value
	}
}

// MarshalJSON renders the values by location.
func (v *Values) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"path":     v.Path,
		"query":    v.Query,
		"header":   v.Header,
		"formData": v.FormData,
	}
	if v.HasBody {
		out["body"] = v.Body
	}
	return json.Marshal(out)
}

// ensureValues returns the request-scoped values, extracting them from r on
// first use. The returned request carries the values in its context.
func ensureValues(r *http.Request, params []apidoc.Parameter) (*Values, *http.Request, error) {
	if v, ok := FromContext(r.Context()); ok {
		return v, r, nil
	}
	v, err := extract(r, params)
	if err != nil {
		return nil, r, err
	}
	return v, r.WithContext(context.WithValue(r.Context(), valuesKey{}, v)), nil
}

// rejectUnreadable answers a request whose parameters could not be
// extracted. Oversized bodies get a 413.
func rejectUnreadable(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	code := "read"
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
		code = "maxBodySize"
	}
	issue := pipeline.ValidationIssue{
		Path:      apidoc.InBody,
		ErrorCode: code + requestValidationSuffix,
		Message:   err.Error(),
		Location:  apidoc.InBody,
	}
	writeValidationError(w, &ValidationError{
		Status: status,
		Errors: []any{issue},
		Issues: []pipeline.ValidationIssue{issue},
	})
}

func extract(r *http.Request, params []apidoc.Parameter) (*Values, error) {
	v := &Values{
		Path:     map[string]any{},
		Query:    map[string]any{},
		Header:   map[string]any{},
		FormData: map[string]any{},
	}
	query := r.URL.Query()
	formParsed := false

	for _, p := range params {
		switch p.In {
		case apidoc.InPath:
			if s := chi.URLParam(r, p.Name); s != "" {
				v.Path[p.Name] = s
			}
		case apidoc.InQuery:
			if raw, ok := query[p.Name]; ok {
				v.Query[p.Name] = pick(p, raw)
			}
		case apidoc.InHeader:
			if raw := r.Header.Values(p.Name); len(raw) > 0 {
				v.Header[p.Name] = pick(p, raw)
			}
		case apidoc.InFormData:
			if !formParsed {
				_ = r.ParseMultipartForm(maxBodyBytes)
				formParsed = true
			}
			if raw, ok := r.PostForm[p.Name]; ok {
				v.FormData[p.Name] = pick(p, raw)
			}
		case apidoc.InBody:
			body, ok, err := readJSONBody(r)
			if err != nil {
				return nil, err
			}
			if ok {
				v.Body, v.HasBody = body, true
			}
		}
	}
	return v, nil
}

// pick keeps every value for multi-valued array parameters and the first
// value otherwise.
func pick(p apidoc.Parameter, raw []string) any {
	if p.Type == "array" && p.CollectionFormat == "multi" {
		out := make([]any, len(raw))
		for i, s := range raw {
			out[i] = s
		}
		return out
	}
	return raw[0]
}

// readJSONBody decodes the request body and puts the bytes back so the
// handler can read it again. Bodies over maxBodyBytes are an error.
func readJSONBody(r *http.Request) (any, bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false, nil
	}
	buf, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, false, nil
	}
	var body any
	if err := json.Unmarshal(buf, &body); err != nil {
		// Not JSON: hand the raw text to validation.
		return string(buf), true, nil
	}
	return body, true, nil
}

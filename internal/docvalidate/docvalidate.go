// Package docvalidate checks an API document against the OpenAPI 2.0
// specification.
package docvalidate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erraggy/oastools/parser"
	"github.com/erraggy/oastools/validator"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
)

// Issue is one problem found in a document.
type Issue struct {
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Validator checks a document. A nil issue list with a nil error means the
// document is valid; err is reserved for failures to run the check.
type Validator interface {
	Validate(ctx context.Context, doc *apidoc.Document) ([]Issue, error)
}

// OASValidator validates with oastools.
type OASValidator struct {
	// Strict enables oastools' checks beyond the specification's
	// requirements.
	Strict bool
}

// New returns the default validator.
func New() *OASValidator {
	return &OASValidator{}
}

var _ Validator = (*OASValidator)(nil)

func (v *OASValidator) Validate(ctx context.Context, doc *apidoc.Document) ([]Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode api doc: %w", err)
	}
	return v.ValidateBytes(data)
}

// ValidateBytes validates a YAML or JSON encoded document.
func (v *OASValidator) ValidateBytes(data []byte) ([]Issue, error) {
	parsed, err := parser.ParseWithOptions(
		parser.WithBytes(data),
		parser.WithValidateStructure(true),
	)
	if err != nil {
		// The bytes came from an encoder or a file the caller read, so a
		// parse failure is a document problem rather than an I/O one.
		return []Issue{{Path: "document", Message: err.Error(), Severity: "error"}}, nil
	}

	result, err := validator.ValidateWithOptions(
		validator.WithParsed(*parsed),
		validator.WithIncludeWarnings(false),
		validator.WithStrictMode(v.Strict),
	)
	if err != nil {
		return []Issue{{Path: "document", Message: err.Error(), Severity: "error"}}, nil
	}
	if result.Valid {
		return nil, nil
	}

	issues := make([]Issue, 0, len(result.Errors))
	for _, e := range result.Errors {
		issues = append(issues, Issue{
			Path:     e.Path,
			Message:  e.Message,
			Severity: e.Severity.String(),
		})
	}
	return issues, nil
}

// Func adapts a function to the Validator interface.
type Func func(ctx context.Context, doc *apidoc.Document) ([]Issue, error)

func (f Func) Validate(ctx context.Context, doc *apidoc.Document) ([]Issue, error) {
	return f(ctx, doc)
}

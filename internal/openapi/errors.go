package openapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tjfontaine/oapi-pipeline/internal/docvalidate"
)

// ErrConfig marks an invalid Initialize argument or option. Configuration
// errors are reported before anything is registered.
var ErrConfig = errors.New("invalid configuration")

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Validation phases of a DocumentError.
const (
	PhaseBeforeAssembly = "before-assembly"
	PhaseAfterAssembly  = "after-assembly"
)

// DocumentError reports an API document that failed validation.
type DocumentError struct {
	// Phase is PhaseBeforeAssembly for the document as supplied and
	// PhaseAfterAssembly for the finalized document.
	Phase  string
	Issues []docvalidate.Issue
}

func (e *DocumentError) Error() string {
	subject := "api doc"
	if e.Phase == PhaseAfterAssembly {
		subject = "api doc after populating paths"
	}
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("%s is invalid (%d issues): %s", subject, len(e.Issues), strings.Join(msgs, "; "))
}

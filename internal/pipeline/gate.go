package pipeline

import "github.com/tjfontaine/oapi-pipeline/internal/apidoc"

// Permits reports whether a stage may run. It returns false when any of the
// supplied documents carries flag set to boolean true; absent (nil)
// documents are ignored.
func Permits(flag string, docs ...apidoc.Extensible) bool {
	for _, doc := range docs {
		if apidoc.BoolFlag(doc, flag) {
			return false
		}
	}
	return true
}

// Permissions is the gate outcome for the four built-in stages.
type Permissions struct {
	Defaults           bool
	Coercion           bool
	RequestValidation  bool
	ResponseValidation bool
}

// AllowAll permits every stage.
var AllowAll = Permissions{Defaults: true, Coercion: true, RequestValidation: true, ResponseValidation: true}

// Evaluate gates every stage against the same set of documents, usually
// {document, route module, path item, operation}. FlagDisableMiddleware
// vetoes all four stages at once.
func Evaluate(docs ...apidoc.Extensible) Permissions {
	if !Permits(FlagDisableMiddleware, docs...) {
		return Permissions{}
	}
	return Permissions{
		Defaults:           Permits(FlagDisableDefaultsMiddleware, docs...),
		Coercion:           Permits(FlagDisableCoercionMiddleware, docs...),
		RequestValidation:  Permits(FlagDisableValidationMiddleware, docs...),
		ResponseValidation: Permits(FlagDisableResponseValidationMiddleware, docs...),
	}
}

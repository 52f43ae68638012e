package pipeline

import (
	"slices"
	"strings"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
)

// AddTags appends each tag name to the document's tag list unless a tag of
// that name is already present.
func AddTags(doc *apidoc.Document, names ...string) {
	for _, name := range names {
		if doc.HasTag(name) {
			continue
		}
		doc.Tags = append(doc.Tags, apidoc.Tag{Name: name})
	}
}

// SortTags orders the document's tags by name, ascending.
func SortTags(doc *apidoc.Document) {
	slices.SortStableFunc(doc.Tags, func(a, b apidoc.Tag) int {
		return strings.Compare(a.Name, b.Name)
	})
}

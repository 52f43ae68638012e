package pipeline

import "github.com/tjfontaine/oapi-pipeline/internal/apidoc"

// MergeParameters combines path-level and operation-level parameters.
//
// When the operation declares no parameter list (nil), pathParams is
// returned unchanged. Otherwise the two lists are concatenated and
// de-duplicated by (name, in): the later entry wins and the surviving
// entries keep their ascending position in the concatenation.
func MergeParameters(pathParams, opParams []apidoc.Parameter) []apidoc.Parameter {
	if opParams == nil {
		return pathParams
	}
	all := make([]apidoc.Parameter, 0, len(pathParams)+len(opParams))
	all = append(all, pathParams...)
	all = append(all, opParams...)
	return withoutDuplicates(all)
}

func withoutDuplicates(params []apidoc.Parameter) []apidoc.Parameter {
	seen := make(map[apidoc.ParamKey]bool, len(params))
	keep := make([]bool, len(params))
	kept := 0
	for i := len(params) - 1; i >= 0; i-- {
		key := params[i].Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		keep[i] = true
		kept++
	}

	out := make([]apidoc.Parameter, 0, kept)
	for i, p := range params {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// HasDefaults reports whether any parameter declares a default value.
func HasDefaults(params []apidoc.Parameter) bool {
	for _, p := range params {
		if p.HasDefault {
			return true
		}
	}
	return false
}

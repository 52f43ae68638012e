package stages

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// Coercion converts string parameter values to the declared type. Values
// that do not parse are left untouched so request validation can reject
// them.
func Coercion(args pipeline.CoercionArgs) pipeline.Middleware {
	params := args.Parameters

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, r, err := ensureValues(r, params)
			if err != nil {
				rejectUnreadable(w, err)
				return
			}
			for _, p := range params {
				if p.In == apidoc.InBody {
					continue
				}
				if v, ok := values.Get(p.In, p.Name); ok {
					values.Set(p.In, p.Name, coerce(v, p.Type, p.Format, p.CollectionFormat, p.Items))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func coerce(v any, typ, format, collectionFormat string, items map[string]any) any {
	switch typ {
	case "integer":
		return coerceInteger(v)
	case "number":
		return coerceNumber(v)
	case "boolean":
		return coerceBoolean(v)
	case "array":
		return coerceArray(v, collectionFormat, items)
	}
	return v
}

func coerceInteger(v any) any {
	switch t := v.(type) {
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return int64(t)
		}
	}
	return v
}

func coerceNumber(v any) any {
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return v
}

func coerceBoolean(v any) any {
	if s, ok := v.(string); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
	}
	return v
}

func coerceArray(v any, collectionFormat string, items map[string]any) any {
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case string:
		parts := strings.Split(t, separator(collectionFormat))
		list = make([]any, len(parts))
		for i, s := range parts {
			list[i] = s
		}
	default:
		return v
	}

	itemType, _ := items["type"].(string)
	itemFormat, _ := items["format"].(string)
	itemCollection, _ := items["collectionFormat"].(string)
	itemItems, _ := items["items"].(map[string]any)
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = coerce(item, itemType, itemFormat, itemCollection, itemItems)
	}
	return out
}

func separator(collectionFormat string) string {
	switch collectionFormat {
	case "ssv":
		return " "
	case "tsv":
		return "\t"
	case "pipes":
		return "|"
	}
	return ","
}

package stages

import (
	"fmt"
	"net/http"

	"github.com/tjfontaine/oapi-pipeline/internal/apidoc"
	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// Defaults fills every absent parameter that declares a default. Query and
// header defaults are also written back onto the request so handlers that
// read r.URL or r.Header see them.
func Defaults(args pipeline.DefaultsArgs) pipeline.Middleware {
	var withDefaults []apidoc.Parameter
	for _, p := range args.Parameters {
		if p.HasDefault && p.In != apidoc.InBody {
			withDefaults = append(withDefaults, p)
		}
	}
	params := args.Parameters

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, r, err := ensureValues(r, params)
			if err != nil {
				rejectUnreadable(w, err)
				return
			}

			query := r.URL.Query()
			queryChanged := false
			for _, p := range withDefaults {
				if _, ok := values.Get(p.In, p.Name); ok {
					continue
				}
				values.Set(p.In, p.Name, p.Default)
				switch p.In {
				case apidoc.InQuery:
					query.Set(p.Name, fmt.Sprint(p.Default))
					queryChanged = true
				case apidoc.InHeader:
					r.Header.Set(p.Name, fmt.Sprint(p.Default))
				}
			}
			if queryChanged {
				r.URL.RawQuery = query.Encode()
			}

			next.ServeHTTP(w, r)
		})
	}
}

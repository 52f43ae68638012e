// Package router registers assembled pipelines with an HTTP router.
package router

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

// Registration is one pipeline mounted on the router.
type Registration struct {
	Method  string
	Pattern string
	// ChiPattern is Pattern in chi's brace syntax.
	ChiPattern string
}

// Chi mounts pipelines on a chi router. Patterns use the `:name` parameter
// syntax the assembler produces and are converted to chi's `{name}`.
type Chi struct {
	mux    chi.Router
	logger *slog.Logger

	mu            sync.Mutex
	registrations []Registration
}

// NewChi wraps mux.
func NewChi(mux chi.Router, logger *slog.Logger) *Chi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chi{mux: mux, logger: logger}
}

// Register mounts p under method and pattern.
func (c *Chi) Register(method, pattern string, p *pipeline.Pipeline) {
	method = strings.ToUpper(method)
	chiPattern := ToChiPattern(pattern)
	c.mux.Method(method, chiPattern, p)

	c.mu.Lock()
	c.registrations = append(c.registrations, Registration{Method: method, Pattern: pattern, ChiPattern: chiPattern})
	c.mu.Unlock()

	c.logger.Debug("route mounted",
		slog.String("method", method),
		slog.String("pattern", chiPattern),
		slog.Int("stages", len(p.Stages)),
	)
}

// Registrations lists what has been mounted, in registration order.
func (c *Chi) Registrations() []Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Registration(nil), c.registrations...)
}

// Handler returns the underlying router.
func (c *Chi) Handler() http.Handler {
	return c.mux
}

// ToChiPattern rewrites every `:name` segment to `{name}`.
func ToChiPattern(pattern string) string {
	segments := strings.Split(pattern, "/")
	for i, s := range segments {
		if len(s) > 1 && s[0] == ':' {
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

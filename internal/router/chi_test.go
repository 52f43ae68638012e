package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

func TestToChiPattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/v1/widgets/:id", "/v1/widgets/{id}"},
		{"/a/:b/c/:d", "/a/{b}/c/{d}"},
		{"/static", "/static"},
		{"/", "/"},
		{"/odd/:", "/odd/:"},
		{"/time/10:30", "/time/10:30"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ToChiPattern(tt.in); got != tt.want {
				t.Errorf("ToChiPattern(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestChi_Register(t *testing.T) {
	mux := chi.NewRouter()
	c := NewChi(mux, nil)

	var gotID string
	p := &pipeline.Pipeline{
		Stages: []pipeline.Stage{{
			Kind: pipeline.StageAdditional,
			Middleware: func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("X-Stage", "ran")
					next.ServeHTTP(w, r)
				})
			},
		}},
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = chi.URLParam(r, "id")
			w.WriteHeader(http.StatusAccepted)
		}),
	}
	c.Register("get", "/v1/widgets/:id", p)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/widgets/42", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if gotID != "42" {
		t.Errorf("id = %q, want 42", gotID)
	}
	if rec.Header().Get("X-Stage") != "ran" {
		t.Error("expected the pipeline stage to run")
	}

	regs := c.Registrations()
	if len(regs) != 1 || regs[0].Method != http.MethodGet || regs[0].ChiPattern != "/v1/widgets/{id}" {
		t.Errorf("unexpected registrations: %+v", regs)
	}

	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/widgets/42", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

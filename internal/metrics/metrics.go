// Package metrics exposes Prometheus metrics for route assembly and for
// requests rejected by the validation stages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/oapi-pipeline/internal/pipeline"
)

const namespace = "oapi_pipeline"

// Recorder holds the metrics of one assembled API. A nil *Recorder is a
// valid no-op recorder.
type Recorder struct {
	registry *prometheus.Registry

	routes     *prometheus.CounterVec // By method
	stages     *prometheus.CounterVec // By stage kind
	rejections *prometheus.CounterVec // By method, path and stage
	issues     *prometheus.CounterVec // By stage and error code
}

// New creates a Recorder backed by its own registry, with the Go runtime
// and process collectors included.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assembly",
			Name:      "routes_registered_total",
			Help:      "Total number of operations registered with the router",
		}, []string{"method"}),

		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assembly",
			Name:      "stages_built_total",
			Help:      "Total number of pipeline stages built, by kind",
		}, []string{"stage"}),

		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "rejections_total",
			Help:      "Total number of requests or responses rejected by a validation stage",
		}, []string{"method", "path", "stage"}),

		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "issues_total",
			Help:      "Total number of validation issues reported, by error code",
		}, []string{"stage", "error_code"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.routes,
		r.stages,
		r.rejections,
		r.issues,
	)
	return r
}

// RouteRegistered records one registered operation and the stages its
// pipeline carries.
func (r *Recorder) RouteRegistered(method string, kinds []pipeline.StageKind) {
	if r == nil {
		return
	}
	r.routes.WithLabelValues(method).Inc()
	for _, kind := range kinds {
		r.stages.WithLabelValues(string(kind)).Inc()
	}
}

// Rejected records a rejection by a validation stage.
func (r *Recorder) Rejected(route pipeline.Route, stage pipeline.StageKind, issues []pipeline.ValidationIssue) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(route.Method, route.Template, string(stage)).Inc()
	for _, issue := range issues {
		r.issues.WithLabelValues(string(stage), issue.ErrorCode).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

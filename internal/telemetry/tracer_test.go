package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := InitTracer(Options{ServiceName: "oapi-pipeline-test", Writer: &buf}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "openapi.Initialize")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "openapi.Initialize") {
		t.Errorf("exported spans missing span name: %s", out)
	}
	if !strings.Contains(out, "oapi-pipeline-test") {
		t.Errorf("exported spans missing service name: %s", out)
	}
}

func TestOptions_Sampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "ParentBased{root:AlwaysOnSampler"},
		{1, "ParentBased{root:AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		got := Options{SampleRatio: tt.ratio}.sampler().Description()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want prefix %q", tt.ratio, got, tt.want)
		}
	}
}

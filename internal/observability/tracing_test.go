package observability

import (
	"context"
	"testing"
	"time"

	"github.com/fieldmesh/manet-simulator/internal/logging"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "")
	t.Setenv("SIM_TRACING_EXPORTER", "")
	t.Setenv("SIM_TRACING_SERVICE_NAME", "")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "")

	cfg := TracingConfigFromEnv()

	if cfg.Enabled {
		t.Fatalf("tracing enabled by default")
	}
	if cfg.Exporter != "stdout" {
		t.Fatalf("default exporter = %q, want stdout", cfg.Exporter)
	}
	if cfg.ServiceName != "manet-simulator" {
		t.Fatalf("default service name = %q", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1.0 {
		t.Fatalf("default sample ratio = %v, want 1.0", cfg.SampleRatio)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "true")
	t.Setenv("SIM_TRACING_EXPORTER", "otlp")
	t.Setenv("SIM_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "0.25")

	cfg := TracingConfigFromEnv()

	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("sample ratio = %v, want 0.25", cfg.SampleRatio)
	}

	// Out-of-range ratios fall back to the default.
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1.0 {
		t.Fatalf("out-of-range sample ratio = %v, want 1.0", got)
	}
}

func TestInitTracingDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("shutdown function missing")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestInitTracingStdoutWithRunContext(t *testing.T) {
	cfg := TracingConfig{
		Enabled:      true,
		ServiceName:  "manet-simulator",
		Exporter:     "stdout",
		SampleRatio:  0.0, // sample nothing so the exporter stays quiet
		ScenarioPath: "configs/scenario.json",
		TickInterval: time.Second,
		Seed:         42,
	}

	shutdown, err := InitTracing(context.Background(), cfg, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	ShutdownWithTimeout(context.Background(), shutdown, logging.Noop())
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "jaeger-thrift"}, logging.Noop())
	if err == nil {
		t.Fatalf("unknown exporter accepted")
	}
}

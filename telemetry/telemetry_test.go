package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), "", "vimy-instance")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("expected global provider untouched")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown, got %v", err)
	}
}

func TestSetupEnabled(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown, err := Setup(context.Background(), "http://127.0.0.1:4318", "vimy-instance")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if otel.GetTracerProvider() == before {
		t.Error("expected provider installed")
	}
	// Nothing was recorded, so shutdown has no spans to flush.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestInitDisabled(t *testing.T) {
	if err := Init(Config{Enabled: false}); err != nil {
		t.Fatalf("Init(disabled) = %v", err)
	}

	// Spans must still be creatable (no-op tracer).
	ctx, span := StartSpan(context.Background(), "test.span")
	if ctx == nil || span == nil {
		t.Fatal("expected usable context and span with tracing disabled")
	}
	span.End()
}

func TestInitUnknownExporter(t *testing.T) {
	if err := Init(Config{Enabled: true, ExporterType: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown exporter type")
	}
}

func TestAttr(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  attribute.KeyValue
	}{
		{"s", "x", attribute.String("s", "x")},
		{"i", 7, attribute.Int("i", 7)},
		{"b", true, attribute.Bool("b", true)},
		{"f", 1.5, attribute.Float64("f", 1.5)},
		{"other", struct{}{}, attribute.String("other", "{}")},
	}
	for _, tt := range tests {
		if got := Attr(tt.key, tt.value); got != tt.want {
			t.Errorf("Attr(%q, %v) = %v, want %v", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders("authorization=Basic abc,x-scope=axon")
	if headers["authorization"] != "Basic abc" || headers["x-scope"] != "axon" {
		t.Errorf("parseHeaders = %v", headers)
	}
	if parseHeaders("") != nil {
		t.Error("empty header string should parse to nil")
	}
}

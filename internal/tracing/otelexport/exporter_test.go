package otelexport

import (
	"context"
	"testing"
	"time"
)

func TestNew_EmptyEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestNew_UnknownProtocol(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "localhost:4317", Protocol: "carrier-pigeon"})
	if err == nil {
		t.Error("expected error for unknown protocol")
	}
}

func TestNew_Protocols(t *testing.T) {
	for _, proto := range []string{"", "grpc", "http"} {
		t.Run("protocol="+proto, func(t *testing.T) {
			exp, err := New(context.Background(), Config{
				Endpoint: "localhost:4317",
				Protocol: proto,
				Insecure: true,
				Headers:  map[string]string{"authorization": "Bearer test"},
			})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if exp.TracerProvider() == nil {
				t.Fatal("nil tracer provider")
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := exp.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown: %v", err)
			}
		})
	}
}

func TestExporter_ShutdownNil(t *testing.T) {
	var e *Exporter
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil error on nil exporter shutdown, got %v", err)
	}
}

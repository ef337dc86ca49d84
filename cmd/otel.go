package cmd

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/botsim/internal/config"
	"github.com/nextlevelbuilder/botsim/internal/tracing/otelexport"
)

// initOTelExporter creates the OTLP exporter when telemetry is enabled. It
// returns nil otherwise, or when the exporter cannot be built.
func initOTelExporter(ctx context.Context, cfg *config.Config) *otelexport.Exporter {
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint == "" {
		slog.Debug("OTel export not enabled (set telemetry.enabled + telemetry.endpoint)")
		return nil
	}

	exp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		Headers:     cfg.Telemetry.Headers,
	})
	if err != nil {
		slog.Warn("failed to create OTel exporter", "error", err)
		return nil
	}
	slog.Info("OpenTelemetry OTLP export enabled",
		"endpoint", cfg.Telemetry.Endpoint,
		"protocol", cfg.Telemetry.Protocol,
	)
	return exp
}

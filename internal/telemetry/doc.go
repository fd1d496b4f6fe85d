// Package telemetry sets up OpenTelemetry tracing and metrics for gitlab-mcp.
//
// When enabled, spans and metrics are exported over OTLP (gRPC or
// HTTP/protobuf) and the providers are installed globally so that the tool
// and HTTP instrumentation pick them up through otel.Meter and otel.Tracer.
// When disabled, the global no-op providers stay in place.
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporter failures do not stop the server. The instance is marked degraded
// and Health reports it.
package telemetry

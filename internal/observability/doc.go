// Package observability provides structured logging, correlation ids and
// OpenTelemetry tracing for the gateway.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request authorized",
//	    observability.String("identity", id.ID),
//	    observability.String("tool", "read_file"),
//	)
//
// Loggers derived with WithContext carry the request, trace and span ids
// stored in the context by ContextWithRequestID and Tracer.StartSpan.
//
// # Tracing
//
// NewTracer installs an OTLP gRPC exporter when an endpoint is configured
// and otherwise falls back to the global no-op provider.
package observability

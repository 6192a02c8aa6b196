package ctscrape

import (
	"context"
	"log"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ConfigureOtel wires a batched OTLP/gRPC exporter into the global tracer
// provider, mirroring itko-submit's configureOtel. It is a no-op safe
// default for a CLI tool: callers that don't set OTEL_EXPORTER_OTLP_*
// environment variables still get a tracer provider, just one whose
// exports go nowhere useful. The returned func shuts everything down and
// should be deferred.
func ConfigureOtel(ctx context.Context) func() {
	client := otlptracegrpc.NewClient()
	exp, err := otlptrace.New(ctx, client)
	if err != nil {
		log.Printf("otel: failed to initialize exporter: %v", err)
		return func() {}
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return func() {
		_ = exp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
	}
}

// instrumentedClient wraps the given client's transport with otelhttp so
// every get-entries request a Fetcher makes emits a span; each Fetcher
// gets its own wrapped client. The Runner's get-sth request goes through
// the unwrapped client.
func instrumentedClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	clone := *base
	clone.Transport = otelhttp.NewTransport(transport)
	return &clone
}

package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// OpenTelemetryNewHandler wraps the handler by a span per request.
func OpenTelemetryNewHandler(handler http.Handler, serviceName string, tracerProvider trace.TracerProvider, publicEndpoint bool) http.Handler {
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(tracerProvider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if publicEndpoint {
		opts = append(opts, otelhttp.WithPublicEndpoint())
	}
	return otelhttp.NewHandler(handler, serviceName, opts...)
}

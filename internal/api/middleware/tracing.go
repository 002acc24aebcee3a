package middleware

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// Tracing wraps the handler with OpenTelemetry HTTP instrumentation.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			serviceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanNameFormatter),
		)
	}
}

// shouldTrace skips health and metrics endpoints.
func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return false
	}
	return true
}

// spanNameFormatter names spans "HTTP {METHOD} {PATH}" with asset names and
// job ids collapsed. Routes are not resolved yet when the span starts.
func spanNameFormatter(_ string, r *http.Request) string {
	return "HTTP " + r.Method + " " + collapsePath(r.URL.Path)
}

func collapsePath(path string) string {
	const videos = "/api/v1/videos/"
	const jobs = "/api/v1/jobs/"
	switch {
	case strings.HasPrefix(path, videos) && len(path) > len(videos):
		return videos + "{name}"
	case strings.HasPrefix(path, jobs) && len(path) > len(jobs):
		return jobs + "{id}"
	}
	return path
}

package telemetry

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by spans and metrics.
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrAuthMethod     = "auth.method"
	AttrAuthSuccess    = "auth.success"
	AttrUserID         = "user.id"
)

// ServerMetrics holds instruments for HTTP request telemetry.
type ServerMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewServerMetrics creates the HTTP instruments on the global meter provider.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("scansetuapi/http")

	requests, err := meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}
	serverErrors, err := meter.Int64Counter("http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	return &ServerMetrics{requests: requests, duration: duration, errors: serverErrors}, nil
}

// RecordRequest records one finished request.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route string, status int, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, durationMs, attrs)
	if status >= 500 {
		m.errors.Add(ctx, 1, attrs)
	}
}

// AuthMetrics holds instruments for sign-in and token operations.
type AuthMetrics struct {
	attempts metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewAuthMetrics creates the auth instruments on the global meter provider.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("scansetuapi/auth")

	attempts, err := meter.Int64Counter("auth.attempt.count",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("auth.failure.count",
		metric.WithDescription("Total number of failed authentication attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("auth.duration",
		metric.WithDescription("Authentication operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{attempts: attempts, failures: failures, duration: duration}, nil
}

// RecordAuth records an attempt; method is password, magiclink, refresh_token and so on.
// A nil receiver records nothing.
func (a *AuthMetrics) RecordAuth(ctx context.Context, method string, success bool, durationMs float64) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAuthMethod, method),
		attribute.Bool(AttrAuthSuccess, success),
	)
	a.attempts.Add(ctx, 1, attrs)
	a.duration.Record(ctx, durationMs, attrs)
	if !success {
		a.failures.Add(ctx, 1, attrs)
	}
}

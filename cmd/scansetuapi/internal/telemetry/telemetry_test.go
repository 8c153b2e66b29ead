package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/config"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{ServiceName: "test"}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestMetrics_NoopProvider(t *testing.T) {
	auth, err := NewAuthMetrics()
	require.NoError(t, err)
	auth.RecordAuth(context.Background(), "password", false, 12)

	var nilAuth *AuthMetrics
	nilAuth.RecordAuth(context.Background(), "password", true, 1)

	srv, err := NewServerMetrics()
	require.NoError(t, err)
	srv.RecordRequest(context.Background(), "GET", "/health", 500, 3)
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "test", "identity.SignUp")
	RecordError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "identity.SignUp", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

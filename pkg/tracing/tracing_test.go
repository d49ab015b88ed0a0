package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), DefaultConfig("storefront"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestStartClientSpan_InjectsTraceparent(t *testing.T) {
	rec := withRecorder(t)
	_, err := InitTracer(context.Background(), DefaultConfig("storefront"))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://backend.local/products", nil)
	require.NoError(t, err)

	_, span := StartClientSpan(context.Background(), req)
	span.End()

	assert.NotEmpty(t, req.Header.Get("traceparent"))
	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /products", spans[0].Name())
}

func TestRecordError(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartSpan(context.Background(), "cart.persist")
	RecordError(span, nil)
	RecordError(span, errors.New("write failed"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"passport-id/internal/platform/tracer"
)

func TestNoopTracer_Start(t *testing.T) {
	ctx := context.Background()
	newCtx, span := tracer.NewNoop().Start(ctx, tracer.SpanScanOpen, tracer.Bool("flag", true))

	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	span.SetAttributes(tracer.String("k", "v"))
	span.AddEvent("poll", tracer.Int64("attempt", 3))
	span.End(errors.New("scan service down"))
}

func TestOTelTracer_WithInjectedTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanScanStatus,
		tracer.String(tracer.AttrIdentity, "3f2a9c1e07b4d685"),
		tracer.Int64(tracer.AttrHTTPStatus, 200),
	)
	require.NotNil(t, span)
	span.End(nil)
}

func TestDuration(t *testing.T) {
	attr := tracer.Duration("latency", 150*time.Millisecond)
	assert.Equal(t, int64(150), attr.Value)
}

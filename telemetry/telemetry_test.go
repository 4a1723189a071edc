package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopTracer(t *testing.T) {
	_, span := NoopTracer().Start(context.Background(), "test")
	defer span.End()

	assert.False(t, span.IsRecording())
	assert.False(t, span.SpanContext().IsValid())
}

func TestTracerUsesGlobalProvider(t *testing.T) {
	assert.NotNil(t, Tracer("service"))
	assert.NotEmpty(t, hostname())
}

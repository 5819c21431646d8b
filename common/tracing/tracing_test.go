package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())

	_, span := p.Tracer().Start(context.Background(), "flush")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_Enabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{
		Enabled:     true,
		Endpoint:    "http://127.0.0.1:4318",
		ServiceName: "stager-test",
		Insecure:    true,
	})
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "commit")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

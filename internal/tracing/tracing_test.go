package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupNone(t *testing.T) {
	shutdown, err := Setup(context.Background(), "none", "gazetteer", "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupUnknown(t *testing.T) {
	_, err := Setup(context.Background(), "jaeger", "gazetteer", "test", nil)
	assert.Error(t, err)
}

func TestSetupStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), "stdout", "gazetteer", "test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "lookup")
	span.End()
	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"lookup"`)
}

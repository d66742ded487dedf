package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup("test", false, &buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "ignored")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestSetupExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup("peoplepod-test", true, &buf)
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "tool.add_data")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "tool.add_data")
	assert.Contains(t, buf.String(), "peoplepod-test")
}

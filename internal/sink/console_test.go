package sink

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuspage-monitor/internal/model"
)

func TestConsoleBanner(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleWriter(&buf)

	require.NoError(t, s.Push(context.Background(), []model.Incident{record("e1", "Assistants API")}))

	out := buf.String()
	assert.Contains(t, out, "NEW INCIDENT DETECTED")
	assert.Contains(t, out, "Product: Assistants API")
	assert.Contains(t, out, "Event: Elevated error rates on Assistants API")
	assert.Contains(t, out, "Status: Investigating")
}

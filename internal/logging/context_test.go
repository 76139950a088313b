package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, DocumentID(ctx))

	ctx = WithDocumentID(ctx, "doc-1")
	ctx = WithGraphID(ctx, "graph-1")
	ctx = WithOperation(ctx, "connect_pins")

	assert.Equal(t, "doc-1", DocumentID(ctx))
	assert.Equal(t, "graph-1", GraphID(ctx))
	assert.Equal(t, "connect_pins", Operation(ctx))
}

func TestLogWithAddsOnlyPresentIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithDocumentID(context.Background(), "doc-1")
	LogWith(ctx, logger).Info("hello")

	out := buf.String()
	assert.Contains(t, out, "document_id=doc-1")
	assert.NotContains(t, out, "graph_id")
	assert.NotContains(t, out, "operation")
}

func TestCorrelationHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithOperation(WithDocumentID(context.Background(), "doc-2"), "split_pin")
	logger.InfoContext(ctx, "working")

	out := buf.String()
	require.Contains(t, out, "document_id=doc-2")
	require.Contains(t, out, "operation=split_pin")
}

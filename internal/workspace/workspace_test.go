package workspace

import (
	"context"
	"log/slog"
	"testing"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/store"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkspace(t *testing.T) (*Workspace, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	return New(s, slog.New(slog.DiscardHandler)), s
}

func dirtyDocument(name string) *graph.Document {
	doc := graph.NewDocument("", name)
	g := doc.AddGraph(graph.NewGraph("EventGraph", graph.GraphEvent))
	tx := doc.Begin("Connect Pins")
	tx.Touch(g)
	tx.Commit()
	return doc
}

func TestGetLoadsFromStore(t *testing.T) {
	w, s := testWorkspace(t)
	ctx := context.Background()

	doc := graph.NewDocument("doc-1", "Player")
	doc.AddGraph(graph.NewGraph("EventGraph", graph.GraphEvent))
	data, err := graph.EncodeDocument(doc)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocument(ctx, &store.DocumentRecord{ID: "doc-1", Name: "Player", Data: data}))

	loaded, err := w.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Player", loaded.Name)
	require.NotNil(t, loaded.GraphByName("EventGraph"))

	// Second get returns the same in-memory instance.
	again, err := w.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Same(t, loaded, again)
}

func TestGetErrors(t *testing.T) {
	w, _ := testWorkspace(t)

	_, err := w.Get(context.Background(), "")
	assert.Equal(t, schema.ErrCodeParamMissing, schema.CodeOf(err, ""))

	_, err = w.Get(context.Background(), "missing")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err, ""))
}

func TestSavePersistsJournal(t *testing.T) {
	w, s := testWorkspace(t)
	ctx := context.Background()

	doc := dirtyDocument("Player")
	w.Open(doc)

	require.NoError(t, w.Save(ctx, doc.ID))
	assert.False(t, doc.Dirty())

	rec, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Player", rec.Name)

	events, err := s.ListEdits(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Connect Pins", events[0].Operation)
	assert.Len(t, events[0].Graphs, 1)

	// Saving again appends nothing: the journal was drained.
	require.NoError(t, w.Save(ctx, doc.ID))
	events, err = s.ListEdits(ctx, doc.ID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSaveUnknownDocument(t *testing.T) {
	w, _ := testWorkspace(t)
	err := w.Save(context.Background(), "missing")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err, ""))
}

func TestSaveDirty(t *testing.T) {
	w, s := testWorkspace(t)
	ctx := context.Background()

	clean := graph.NewDocument("", "Clean")
	clean.AddGraph(graph.NewGraph("EventGraph", graph.GraphEvent))
	w.Open(clean)
	w.Open(dirtyDocument("DirtyA"))
	w.Open(dirtyDocument("DirtyB"))

	saved, err := w.SaveDirty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	records, err := s.ListDocuments(ctx, store.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2, "clean documents are skipped")

	saved, err = w.SaveDirty(ctx)
	require.NoError(t, err)
	assert.Zero(t, saved)
}

func TestCloseDropsDocument(t *testing.T) {
	w, _ := testWorkspace(t)

	doc := dirtyDocument("Player")
	w.Open(doc)
	w.Close(doc.ID)

	_, err := w.Get(context.Background(), doc.ID)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err, ""))
	assert.Empty(t, w.Documents())
}

type denyAllSchema struct {
	graph.DefaultSchema
}

func (denyAllSchema) CanConnect(out, in *graph.Pin) graph.ConnectResponse {
	return graph.Disallow
}

func TestConnectionPolicyAppliedOnOpenAndLoad(t *testing.T) {
	w, s := testWorkspace(t)
	ctx := context.Background()
	w.SetConnectionPolicy(denyAllSchema{})

	opened := graph.NewDocument("doc-open", "Opened")
	og := opened.AddGraph(graph.NewGraph("EventGraph", graph.GraphEvent))
	w.Open(opened)
	assert.IsType(t, denyAllSchema{}, og.Schema())

	stored := graph.NewDocument("doc-load", "Stored")
	stored.AddGraph(graph.NewGraph("EventGraph", graph.GraphEvent))
	data, err := graph.EncodeDocument(stored)
	require.NoError(t, err)
	require.NoError(t, s.SaveDocument(ctx, &store.DocumentRecord{ID: "doc-load", Name: "Stored", Data: data}))

	loaded, err := w.Get(ctx, "doc-load")
	require.NoError(t, err)
	assert.IsType(t, denyAllSchema{}, loaded.GraphByName("EventGraph").Schema())

	// Graphs created after load pick the policy up on the next Get.
	loaded.AddGraph(graph.NewGraph("DoThing", graph.GraphFunction))
	loaded, err = w.Get(ctx, "doc-load")
	require.NoError(t, err)
	assert.IsType(t, denyAllSchema{}, loaded.GraphByName("DoThing").Schema())
}

// Package workspace holds open documents in memory, loading them from the
// store on first use and flushing dirty ones back with their edit journals.
package workspace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/logging"
	"github.com/kevinpbuckley/blueprintd/internal/store"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// Workspace is the set of open documents, keyed by document id.
// Safe for concurrent use; editing a document still needs external
// serialization, which the single-request serving loop provides.
type Workspace struct {
	store  store.Store
	logger *slog.Logger

	mu     sync.Mutex
	docs   map[string]*graph.Document
	policy graph.Schema
}

// New creates a workspace backed by s.
func New(s store.Store, logger *slog.Logger) *Workspace {
	return &Workspace{store: s, logger: logger, docs: make(map[string]*graph.Document)}
}

// SetConnectionPolicy installs a connection policy on every graph of every
// document the workspace opens or loads from here on. Already-open
// documents keep their current policy.
func (w *Workspace) SetConnectionPolicy(s graph.Schema) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.policy = s
}

func (w *Workspace) applyPolicy(doc *graph.Document) {
	if w.policy == nil {
		return
	}
	for _, g := range doc.Graphs() {
		g.SetSchema(w.policy)
	}
}

// Get returns the open document with the given id, loading it from the
// store on a miss.
func (w *Workspace) Get(ctx context.Context, id string) (*graph.Document, error) {
	if id == "" {
		return nil, schema.NewError(schema.ErrCodeParamMissing, "document id is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if doc, ok := w.docs[id]; ok {
		// Re-applied on every hit so graphs created since load are covered.
		w.applyPolicy(doc)
		return doc, nil
	}

	rec, err := w.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := graph.DecodeDocument(rec.Data)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode document %s", id).WithCause(err)
	}
	w.applyPolicy(doc)
	w.docs[id] = doc

	logging.LogWith(ctx, w.logger).Debug("document loaded", slog.String("document_id", id))
	return doc, nil
}

// Open registers an already-built document, replacing any open copy with the
// same id.
func (w *Workspace) Open(doc *graph.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyPolicy(doc)
	w.docs[doc.ID] = doc
}

// Close drops a document from memory without saving it.
func (w *Workspace) Close(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.docs, id)
}

// Documents returns every open document.
func (w *Workspace) Documents() []*graph.Document {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]*graph.Document, 0, len(w.docs))
	for _, doc := range w.docs {
		out = append(out, doc)
	}
	return out
}

// Save encodes the document, persists it, appends its drained journal to the
// edit log and clears the dirty set.
func (w *Workspace) Save(ctx context.Context, id string) error {
	w.mu.Lock()
	doc, ok := w.docs[id]
	w.mu.Unlock()
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "document %q is not open", id).WithIdentifier(id)
	}
	return w.save(ctx, doc)
}

// SaveDirty persists every open document with unsaved changes and returns
// how many were written. The first failure stops the sweep.
func (w *Workspace) SaveDirty(ctx context.Context) (int, error) {
	saved := 0
	for _, doc := range w.Documents() {
		if !doc.Dirty() {
			continue
		}
		if err := w.save(ctx, doc); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}

func (w *Workspace) save(ctx context.Context, doc *graph.Document) error {
	data, err := graph.EncodeDocument(doc)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encode document %s", doc.ID).WithCause(err)
	}
	if err := w.store.SaveDocument(ctx, &store.DocumentRecord{
		ID:   doc.ID,
		Name: doc.Name,
		Data: data,
	}); err != nil {
		return err
	}

	for _, entry := range doc.DrainJournal() {
		event := &store.EditEvent{
			DocumentID: doc.ID,
			Operation:  entry.Operation,
			Graphs:     entry.GraphIDs,
			Timestamp:  entry.At,
		}
		if err := w.store.AppendEdit(ctx, event); err != nil {
			return err
		}
	}
	doc.ClearDirty()

	logging.LogWith(ctx, w.logger).Info("document saved", slog.String("document_id", doc.ID))
	return nil
}

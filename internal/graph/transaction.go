package graph

import "time"

// Transaction is a scoped unit of mutation. Cancel before Commit discards
// the journal entry; it does not undo destructive sub-steps already
// executed (breaking links is a committed side effect once performed).
type Transaction struct {
	doc       *Document
	operation string
	graphIDs  []string
	done      bool
}

// Begin opens a transaction named after the logical operation.
func (d *Document) Begin(operation string) *Transaction {
	return &Transaction{doc: d, operation: operation}
}

// Touch records a graph as mutated by this transaction. Duplicates collapse.
func (t *Transaction) Touch(g *Graph) {
	if g == nil {
		return
	}
	for _, id := range t.graphIDs {
		if id == g.ID {
			return
		}
	}
	t.graphIDs = append(t.graphIDs, g.ID)
}

// Commit journals the operation and marks each touched graph modified once.
func (t *Transaction) Commit() {
	if t.done {
		return
	}
	t.done = true
	if len(t.graphIDs) == 0 {
		return
	}
	for _, id := range t.graphIDs {
		t.doc.MarkModified(t.doc.GraphByID(id))
	}
	t.doc.journal = append(t.doc.journal, JournalEntry{
		Operation: t.operation,
		GraphIDs:  t.graphIDs,
		At:        time.Now().UTC(),
	})
}

// Cancel abandons the transaction. Safe to defer; a no-op after Commit.
func (t *Transaction) Cancel() {
	t.done = true
}

package store

import (
	"encoding/json"
	"time"
)

// DocumentRecord is the persisted form of a node-graph document: the encoded
// JSON blob plus bookkeeping timestamps.
type DocumentRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// EditEvent is an immutable entry in the per-document edit log. Sequence is
// monotonically increasing within a document and assigned on append.
type EditEvent struct {
	ID         int64           `json:"id"`
	DocumentID string          `json:"document_id"`
	Operation  string          `json:"operation"`
	Graphs     []string        `json:"graphs,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Sequence   int64           `json:"sequence"`
}

// DocumentFilter narrows ListDocuments.
type DocumentFilter struct {
	NameContains string
	Limit        int
}

// EditFilter narrows ListEdits beyond the document id.
type EditFilter struct {
	Operation string
	Limit     int
}

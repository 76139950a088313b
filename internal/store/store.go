package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Documents
	SaveDocument(ctx context.Context, rec *DocumentRecord) error
	GetDocument(ctx context.Context, id string) (*DocumentRecord, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*DocumentRecord, error)
	DeleteDocument(ctx context.Context, id string) error

	// Edit log (append-only)
	AppendEdit(ctx context.Context, event *EditEvent) error
	ListEdits(ctx context.Context, documentID string, since int64) ([]*EditEvent, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// MemoryStore is an in-memory Store for tests and store-less runs.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*DocumentRecord
	edits map[string][]*EditEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*DocumentRecord),
		edits: make(map[string][]*EditEvent),
	}
}

func (s *MemoryStore) SaveDocument(ctx context.Context, rec *DocumentRecord) error {
	if rec == nil || rec.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "document record needs an id")
	}
	if len(rec.Data) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "document record needs data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *rec
	if existing, ok := s.docs[rec.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = timeOrNow(rec.CreatedAt)
	}
	stored.UpdatedAt = now
	s.docs[rec.ID] = &stored
	rec.UpdatedAt = now
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, storeNotFound("document", id)
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*DocumentRecord
	for _, rec := range s.docs {
		if filter.NameContains != "" && !strings.Contains(rec.Name, filter.NameContains) {
			continue
		}
		out := *rec
		records = append(records, &out)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return storeNotFound("document", id)
	}
	delete(s.docs, id)
	delete(s.edits, id)
	return nil
}

func (s *MemoryStore) AppendEdit(ctx context.Context, event *EditEvent) error {
	if event == nil || event.DocumentID == "" {
		return schema.NewError(schema.ErrCodeValidation, "edit event needs a document id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *event
	stored.Sequence = int64(len(s.edits[event.DocumentID])) + 1
	stored.ID = stored.Sequence
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}
	s.edits[event.DocumentID] = append(s.edits[event.DocumentID], &stored)

	event.Sequence = stored.Sequence
	event.Timestamp = stored.Timestamp
	return nil
}

func (s *MemoryStore) ListEdits(ctx context.Context, documentID string, since int64) ([]*EditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*EditEvent
	for _, e := range s.edits[documentID] {
		if e.Sequence <= since {
			continue
		}
		out := *e
		events = append(events, &out)
	}
	return events, nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Vacuum(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

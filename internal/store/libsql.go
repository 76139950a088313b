package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Documents ---

func (s *LibSQLStore) SaveDocument(ctx context.Context, rec *DocumentRecord) error {
	if rec == nil || rec.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "document record needs an id")
	}
	if len(rec.Data) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "document record needs data")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, data=excluded.data, updated_at=excluded.updated_at`,
		rec.ID, rec.Name, string(rec.Data), timeOrNow(rec.CreatedAt), now,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save document %s", rec.ID).WithCause(err)
	}
	rec.UpdatedAt = now
	return nil
}

func (s *LibSQLStore) GetDocument(ctx context.Context, id string) (*DocumentRecord, error) {
	rec := &DocumentRecord{}
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, data, created_at, updated_at FROM documents WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &data, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("document", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get document %s", id).WithCause(err)
	}
	rec.Data = json.RawMessage(data)
	return rec, nil
}

func (s *LibSQLStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*DocumentRecord, error) {
	query := `SELECT id, name, data, created_at, updated_at FROM documents`
	var args []any
	if filter.NameContains != "" {
		query += ` WHERE name LIKE ?`
		args = append(args, "%"+filter.NameContains+"%")
	}
	query += ` ORDER BY name`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list documents").WithCause(err)
	}
	defer rows.Close()

	var records []*DocumentRecord
	for rows.Next() {
		rec := &DocumentRecord{}
		var data string
		if err := rows.Scan(&rec.ID, &rec.Name, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Data = json.RawMessage(data)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *LibSQLStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete document %s", id).WithCause(err)
	}
	if err := checkRowsAffected(res, "document", id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM edit_events WHERE document_id = ?`, id)
	return err
}

// --- Edit log ---

// AppendEdit appends an event with a monotonically increasing per-document
// sequence. The whole read-assign-insert runs in one transaction so sequences
// stay contiguous under concurrency (the single-connection pool serializes
// writers).
func (s *LibSQLStore) AppendEdit(ctx context.Context, event *EditEvent) error {
	if event == nil || event.DocumentID == "" {
		return schema.NewError(schema.ErrCodeValidation, "edit event needs a document id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin edit tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM edit_events WHERE document_id = ?`, event.DocumentID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	graphs, err := nullableJSON(event.Graphs)
	if err != nil {
		return fmt.Errorf("marshal graphs: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO edit_events (document_id, operation, graphs, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.DocumentID, event.Operation, graphs, nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert edit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edit event: %w", err)
	}
	return nil
}

// ListEdits returns events for a document with sequence > since, ordered by
// sequence ASC.
func (s *LibSQLStore) ListEdits(ctx context.Context, documentID string, since int64) ([]*EditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, operation, graphs, payload, timestamp, sequence
		 FROM edit_events WHERE document_id = ? AND sequence > ? ORDER BY sequence ASC`,
		documentID, since,
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list edits for %s", documentID).WithCause(err)
	}
	defer rows.Close()

	var events []*EditEvent
	for rows.Next() {
		e := &EditEvent{}
		var graphs, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Operation, &graphs, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		if graphs.Valid && graphs.String != "" {
			if err := json.Unmarshal([]byte(graphs.String), &e.Graphs); err != nil {
				return nil, fmt.Errorf("unmarshal graphs: %w", err)
			}
		}
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.GraphError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullableJSON(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

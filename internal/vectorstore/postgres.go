package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/db"
)

// PostgresStore is the Postgres-document-table-backed backend (§4.3,
// §9), built on the documents table and migration runner in
// internal/db. Writes are synchronous so a successful Upsert survives
// a restart without a background flusher (§4.3 persistence invariant,
// option (a)).
type PostgresStore struct {
	conn *db.DB
}

func NewPostgresStore(conn *db.DB) *PostgresStore { return &PostgresStore{conn: conn} }

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Upsert(ctx context.Context, docs []core.Document) (UpsertResult, error) {
	result := UpsertResult{Errors: map[string]error{}}

	for _, doc := range docs {
		h := contentHash(doc)

		var existingHash string
		err := s.conn.QueryRowContext(ctx, `SELECT content_hash FROM documents WHERE id = $1`, doc.ID).Scan(&existingHash)
		if err == nil && existingHash == h {
			result.DedupeHits = append(result.DedupeHits, doc.ID)
			continue
		}

		metaJSON, merr := json.Marshal(doc.Metadata)
		if merr != nil {
			result.Errors[doc.ID] = merr
			continue
		}

		_, werr := s.conn.ExecContext(ctx, `
			INSERT INTO documents (id, text, content_hash, metadata, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (id) DO UPDATE SET
				text = EXCLUDED.text,
				content_hash = EXCLUDED.content_hash,
				metadata = EXCLUDED.metadata,
				updated_at = NOW()
		`, doc.ID, doc.Text, h, metaJSON)
		if werr != nil {
			result.Errors[doc.ID] = werr
			continue
		}
		result.Written++
	}
	return result, nil
}

func (s *PostgresStore) Query(ctx context.Context, text string, filters Filters, k int) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, text, metadata FROM documents`)
	if err != nil {
		return nil, nil
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var id, docText string
		var metaJSON []byte
		if err := rows.Scan(&id, &docText, &metaJSON); err != nil {
			continue
		}
		var meta core.DocumentMetadata
		_ = json.Unmarshal(metaJSON, &meta)
		docs = append(docs, core.Document{ID: id, Text: docText, Metadata: meta})
	}
	return rankByLexicalScore(docs, text, filters, k), nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var d core.Document
	var metaJSON []byte
	err := s.conn.QueryRowContext(ctx, `SELECT id, text, metadata FROM documents WHERE id = $1`, id).
		Scan(&d.ID, &d.Text, &metaJSON)
	if err != nil {
		return nil, nil
	}
	_ = json.Unmarshal(metaJSON, &d.Metadata)
	return &d, nil
}

// Documents returns every row in the documents table, for
// Tiered.Warm to copy into the in-memory tier on startup.
func (s *PostgresStore) Documents(ctx context.Context) ([]core.Document, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, text, content_hash, metadata FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: documents: %w", err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var d core.Document
		var metaJSON []byte
		if err := rows.Scan(&d.ID, &d.Text, &d.ContentHash, &metaJSON); err != nil {
			continue
		}
		_ = json.Unmarshal(metaJSON, &d.Metadata)
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *PostgresStore) GetStats(ctx context.Context) (Stats, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("postgres store: stats: %w", err)
	}
	return Stats{DocumentCount: count}, nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

var _ Store = (*PostgresStore)(nil)

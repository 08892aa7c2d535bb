package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// PostgresStore persists chunk embeddings in a pgvector table. The site_id
// column is part of every statement, which is what enforces tenant isolation
// on this backend.
type PostgresStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, dimensions int) (*PostgresStore, error) {
	s := &PostgresStore{
		pool:       pool,
		dimensions: dimensions,
	}

	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare pgvector schema: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_embeddings (
			id          TEXT PRIMARY KEY,
			site_id     TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content     TEXT NOT NULL,
			embedding   vector(%d) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_site ON chunk_embeddings (site_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_site_doc ON chunk_embeddings (site_id, document_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, siteID string, points []domain.ChunkPoint) error {
	batch := &pgx.Batch{}

	for _, p := range points {
		batch.Queue(`
			INSERT INTO chunk_embeddings (id, site_id, document_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content, embedding = EXCLUDED.embedding
		`, p.ID, siteID, p.DocumentID, p.Index, p.Text, pgvector.NewVector(p.Vector))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range points {
		if _, err := results.Exec(); err != nil {
			return domain.StorageError("failed to upsert chunk embeddings", err)
		}
	}

	return nil
}

func (s *PostgresStore) Query(ctx context.Context, siteID string, vector []float32, topK int) ([]domain.ChunkMatch, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	vec := pgvector.NewVector(vector)

	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, 1 - (embedding <=> $2) AS score
		FROM chunk_embeddings
		WHERE site_id = $1
		ORDER BY embedding <=> $2, created_at, id
		LIMIT $3
	`, siteID, vec, topK)
	if err != nil {
		return nil, domain.StorageError("failed to query chunk embeddings", err)
	}
	defer rows.Close()

	var matches []domain.ChunkMatch
	for rows.Next() {
		var m domain.ChunkMatch
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Index, &m.Text, &m.Score); err != nil {
			return nil, domain.StorageError("failed to scan chunk embedding row", err)
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func (s *PostgresStore) DeleteByDocument(ctx context.Context, siteID, documentID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM chunk_embeddings WHERE site_id = $1 AND document_id = $2
	`, siteID, documentID)
	if err != nil {
		return domain.StorageError("failed to delete chunk embeddings", err)
	}

	return nil
}

// Package postgres provides the PostgreSQL-backed transcript store.
//
// One [pgxpool.Pool] serves both persistence and search. Full-text search
// runs over a GIN index on the line text; semantic search uses a pgvector
// HNSW index over per-line embeddings. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
//
// The full-text configuration is 'simple' because transcripts are mostly
// Vietnamese and PostgreSQL ships no Vietnamese stemmer; 'simple' avoids
// English stemming mangling the tokens.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscripts = `
CREATE TABLE IF NOT EXISTS transcripts (
    id          TEXT         PRIMARY KEY,
    source      TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_source
    ON transcripts (source);

CREATE INDEX IF NOT EXISTS idx_transcripts_created_at
    ON transcripts (created_at);
`

// ddlLines returns the transcript_lines DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlLines(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS transcript_lines (
    transcript_id  TEXT    NOT NULL REFERENCES transcripts (id) ON DELETE CASCADE,
    line_index     INT     NOT NULL,
    speaker        TEXT    NOT NULL DEFAULT '',
    start_ns       BIGINT  NOT NULL,
    end_ns         BIGINT  NOT NULL,
    text           TEXT    NOT NULL,
    embedding      vector(%d),
    PRIMARY KEY (transcript_id, line_index)
);

CREATE INDEX IF NOT EXISTS idx_lines_speaker
    ON transcript_lines (speaker);

CREATE INDEX IF NOT EXISTS idx_lines_fts
    ON transcript_lines USING GIN (to_tsvector('simple', text));

CREATE INDEX IF NOT EXISTS idx_lines_embedding
    ON transcript_lines USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS)
// and safe to call on every application start.
//
// embeddingDimensions must match the text-embedding model configured for your
// deployment (e.g., 1536 for OpenAI text-embedding-3-small). Changing this
// value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlTranscripts,
		ddlLines(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
